package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/backfill"
	"github.com/classworks/rosterd/pkg/config"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/store"
)

func main() {
	heuristic := flag.String("heuristic", "all", "Which heuristic to run: authorship, enrollment, audit, or all")
	dryRun := flag.Bool("dry-run", false, "Compute and report writes without persisting")
	minSubmissions := flag.Int("min-submissions", 0, "Minimum answer count to consider enrollment (0 uses the configured default)")
	fix := flag.Bool("fix", false, "Rewrite records flagged by the consistency audit")
	schedule := flag.String("schedule", "", "Cron expression for periodic runs, empty for a single run")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *minSubmissions <= 0 {
		*minSubmissions = cfg.Backfill.MinSubmissions
	}
	if *schedule == "" {
		*schedule = cfg.Backfill.Schedule
	}

	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	principals := store.NewSQLStore(db)
	activity := store.NewSQLActivityLog(db)
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var auditor audit.Logger = audit.NopLogger{}
	if dir := cfg.Observability.AuditLogDir; dir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: dir, Rotate: true})
		if err != nil {
			log.WithError(err).Fatal("Failed to open audit log")
		}
		defer fileLogger.Close()
		auditor = fileLogger
	}

	runner := &runner{
		heuristic:  *heuristic,
		dryRun:     *dryRun,
		fix:        *fix,
		minSubs:    *minSubmissions,
		log:        log,
		authorship: backfill.NewAuthorshipEngine(principals, activity, logger, nil, auditor),
		enrollment: backfill.NewEnrollmentEngine(principals, activity, logger, nil, auditor),
		audit:      backfill.NewConsistencyAudit(principals, logger, nil, auditor),
	}

	if *schedule == "" {
		if err := runner.run(context.Background()); err != nil {
			log.WithError(err).Fatal("Backfill run failed")
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() {
		if err := runner.run(context.Background()); err != nil {
			log.WithError(err).Error("Scheduled backfill run failed")
		}
	}); err != nil {
		log.WithError(err).Fatalf("Invalid schedule %q", *schedule)
	}

	log.WithField("schedule", *schedule).Info("Running on a schedule, press Ctrl-C to stop")
	c.Start()
	defer c.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

type runner struct {
	heuristic string
	dryRun    bool
	fix       bool
	minSubs   int
	log       *logrus.Logger

	authorship *backfill.AuthorshipEngine
	enrollment *backfill.EnrollmentEngine
	audit      *backfill.ConsistencyAudit
}

func (r *runner) run(ctx context.Context) error {
	opts := backfill.Options{DryRun: r.dryRun, MinSubmissions: r.minSubs}

	if r.heuristic == "authorship" || r.heuristic == "all" {
		report, err := r.authorship.Run(ctx, opts)
		if err != nil {
			return err
		}
		r.print(report.Heuristic, report)
	}

	if r.heuristic == "enrollment" || r.heuristic == "all" {
		report, err := r.enrollment.Run(ctx, opts)
		if err != nil {
			return err
		}
		r.print(report.Heuristic, report)
	}

	if r.heuristic == "audit" || r.heuristic == "all" {
		report, err := r.audit.Run(ctx, r.fix && !r.dryRun)
		if err != nil {
			return err
		}
		r.print("consistency", report)
	}

	return nil
}

func (r *runner) print(name string, report interface{}) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		r.log.WithError(err).Error("Failed to render report")
		return
	}
	r.log.WithField("heuristic", name).Info("Run complete")
	os.Stdout.Write(append(data, '\n'))
}
