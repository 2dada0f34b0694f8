// Package postgres records Boa job snapshots in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/internal/metrics"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/protocol"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Store is a PostgreSQL job history store.
type Store struct {
	db *sql.DB
}

// New opens and pings the database.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history tables.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Debug("running migration", logging.String("file", f))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// RecordJobs inserts jobs, or updates the submission time and statuses of
// jobs already recorded.
func (s *Store) RecordJobs(ctx context.Context, jobs []models.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryQuery("record_jobs", time.Since(start))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO boa_jobs (id, submitted_at, dataset_id, dataset_name, compiler_status, execution_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   submitted_at = EXCLUDED.submitted_at,
		   compiler_status = EXCLUDED.compiler_status,
		   execution_status = EXCLUDED.execution_status,
		   recorded_at = NOW()`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx,
			j.ID, j.SubmittedAt, j.Dataset.ID, j.Dataset.Name,
			j.CompileStatus.String(), j.ExecStatus.String(),
		); err != nil {
			return fmt.Errorf("upsert job %d: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Debug("recorded jobs", logging.Int("count", len(jobs)))
	return nil
}

// ListJobs returns up to limit recorded jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryQuery("list_jobs", time.Since(start))
	}()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submitted_at, dataset_id, dataset_name, compiler_status, execution_status
		 FROM boa_jobs ORDER BY submitted_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			j               models.Job
			compile, execst string
		)
		if err := rows.Scan(&j.ID, &j.SubmittedAt, &j.Dataset.ID, &j.Dataset.Name, &compile, &execst); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if j.CompileStatus, err = protocol.ParseStatus("compiler_status", compile); err != nil {
			return nil, err
		}
		if j.ExecStatus, err = protocol.ParseStatus("hadoop_status", execst); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
