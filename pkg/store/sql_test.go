package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classworks/rosterd/pkg/principal"
)

func TestSQLStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db)

	doc := `{"id": "jdoe1", "roles": ["instructor"], "class_memberships": [{"class_id": "cda", "role": "instructor"}]}`
	mock.ExpectQuery(`SELECT data FROM users WHERE id = \$1`).
		WithArgs("jdoe1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(doc)))

	p, err := s.Get(context.Background(), "jdoe1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe1", p.ID)
	assert.Equal(t, []string{"instructor"}, p.Roles)
	require.Len(t, p.ClassMemberships, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db)

	mock.ExpectQuery(`SELECT data FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err = s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreGetFillsMissingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db)

	mock.ExpectQuery(`SELECT data FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"roles": []}`)))

	p, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
}

func TestSQLStoreUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db)

	p := &principal.Principal{
		ID:               "u1",
		ClassMemberships: []principal.Membership{{ClassID: "cda", Role: "ta"}},
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreForEach(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db)

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("a", []byte(`{"id": "a", "roles": []}`)).
		AddRow("b", []byte(`{"id": "b", "roles": ["admin"]}`))
	mock.ExpectQuery(`SELECT id, data FROM users ORDER BY id`).WillReturnRows(rows)

	var seen []string
	err = s.ForEach(context.Background(), func(p *principal.Principal) error {
		seen = append(seen, p.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSQLActivityLogQuizModifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewSQLActivityLog(db)

	quiz := map[string]interface{}{
		"class": "ohdsi24",
		"questions": []map[string]interface{}{
			{"change_log": []map[string]string{
				{"updated_by": "userA", "updated_at": "2024-09-01T10:00:00Z"},
				{"updated_by": "userB"},
				{"updated_by": ""},
			}},
		},
	}
	data, err := json.Marshal(quiz)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("q1", data).
		AddRow("q2", []byte(`{"questions": [{"change_log": [{"updated_by": "userC"}]}]}`)).
		AddRow("q3", []byte(`not json`))
	mock.ExpectQuery(`SELECT id, data FROM quiz`).WillReturnRows(rows)

	mods, err := l.QuizModifications(context.Background())
	require.NoError(t, err)

	// q2 has no class and q3 is malformed; both are skipped. The empty
	// actor entry is skipped too.
	require.Len(t, mods, 2)
	assert.Equal(t, "userA", mods[0].ActorID)
	assert.Equal(t, "ohdsi24", mods[0].ClassID)
	assert.False(t, mods[0].Timestamp.IsZero())
	assert.Equal(t, "userB", mods[1].ActorID)
	assert.True(t, mods[1].Timestamp.IsZero())
}

func TestSQLActivityLogSubmissionCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewSQLActivityLog(db)

	rows := sqlmock.NewRows([]string{"student", "course", "submissions"}).
		AddRow("sliu197", "cda", 164).
		AddRow("aalagha2", nil, 12).
		AddRow("aliu62", "fhir22", 7)
	mock.ExpectQuery(`FROM answer`).WithArgs(5).WillReturnRows(rows)

	counts, err := l.SubmissionCounts(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, counts, 2)
	assert.Equal(t, EnrollmentCount{StudentID: "sliu197", ClassID: "cda", Submissions: 164}, counts[0])
	assert.Equal(t, EnrollmentCount{StudentID: "aliu62", ClassID: "fhir22", Submissions: 7}, counts[1])
}
