package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classworks/rosterd/pkg/principal"
)

// SQLStore implements PrincipalStore over a document-style users table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed principal store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get fetches the full document for a principal.
func (s *SQLStore) Get(ctx context.Context, id string) (*principal.Principal, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM users WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal %s: %w", id, err)
	}

	var p principal.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode principal %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// Upsert writes the whole document, replacing any existing row.
func (s *SQLStore) Upsert(ctx context.Context, p *principal.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode principal %s: %w", p.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, p.ID, data)
	if err != nil {
		return fmt.Errorf("failed to upsert principal %s: %w", p.ID, err)
	}
	return nil
}

// ForEach streams every principal document through fn.
func (s *SQLStore) ForEach(ctx context.Context, fn func(*principal.Principal) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM users ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("failed to scan principal row: %w", err)
		}

		var p principal.Principal
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to decode principal %s: %w", id, err)
		}
		if p.ID == "" {
			p.ID = id
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SQLActivityLog implements ActivityLog over the quiz and answer tables,
// which store the same document-style rows as users.
type SQLActivityLog struct {
	db *sql.DB
}

// NewSQLActivityLog creates a SQL-backed activity log view.
func NewSQLActivityLog(db *sql.DB) *SQLActivityLog {
	return &SQLActivityLog{db: db}
}

// quizDoc is the subset of a quiz document the modification scan reads:
// the owning class and the per-question change logs.
type quizDoc struct {
	Class     string `json:"class"`
	Questions []struct {
		ChangeLog []struct {
			UpdatedBy string `json:"updated_by"`
			UpdatedAt string `json:"updated_at"`
		} `json:"change_log"`
	} `json:"questions"`
}

// QuizModifications walks every quiz document's change logs and emits one
// event per (actor, class) log entry. Quizzes without a class and entries
// without an actor are skipped; malformed documents are skipped rather than
// failing the scan, matching the tolerance applied to principal records.
func (l *SQLActivityLog) QuizModifications(ctx context.Context) ([]Modification, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, data FROM quiz`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan quiz table: %w", err)
	}
	defer rows.Close()

	var mods []Modification
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan quiz row: %w", err)
		}

		var quiz quizDoc
		if err := json.Unmarshal(data, &quiz); err != nil || quiz.Class == "" {
			continue
		}
		for _, q := range quiz.Questions {
			for _, change := range q.ChangeLog {
				if change.UpdatedBy == "" {
					continue
				}
				ts, _ := time.Parse(time.RFC3339, change.UpdatedAt)
				mods = append(mods, Modification{
					ActorID:   change.UpdatedBy,
					ClassID:   quiz.Class,
					Timestamp: ts,
				})
			}
		}
	}
	return mods, rows.Err()
}

// SubmissionCounts aggregates the answer table by (student, class), keeping
// pairs at or above minSubmissions. The grouping happens in SQL so the scan
// never materializes individual submissions.
func (l *SQLActivityLog) SubmissionCounts(ctx context.Context, minSubmissions int) ([]EnrollmentCount, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT data->>'team' AS student, data->>'course' AS course, COUNT(*) AS submissions
		FROM answer
		WHERE data->>'team' IS NOT NULL AND data->>'team' != ''
		GROUP BY data->>'team', data->>'course'
		HAVING COUNT(*) >= $1
		ORDER BY student, course
	`, minSubmissions)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate submissions: %w", err)
	}
	defer rows.Close()

	var counts []EnrollmentCount
	for rows.Next() {
		var c EnrollmentCount
		var course sql.NullString
		if err := rows.Scan(&c.StudentID, &course, &c.Submissions); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		if !course.Valid || course.String == "" {
			continue
		}
		c.ClassID = course.String
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
