package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/lakeingest/internal/ingest"
)

// RunRecord is one stored run, as listed by ListRuns.
type RunRecord struct {
	RunID          string
	SourceFile     string
	Table          string
	TotalChunks    int
	Succeeded      int
	Failed         int
	RowsAppended   int64
	OverallSuccess bool
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Duration is the wall time of the run.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ledger records run verdicts in a SQLite database. The engine never reads it.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex // single writer
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores the run and all of its chunk outcomes in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, report *ingest.Report, sourceFile string) error {
	if report == nil {
		return fmt.Errorf("ledger: nil report")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := ""
	if report.Handle != nil {
		table = report.Handle.Identifier()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, source_file, table_ident,
			total_chunks, succeeded, failed, rows_appended, overall_success,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, sourceFile, table,
		report.Verdict.TotalChunks, report.Verdict.Succeeded, report.Verdict.Failed,
		report.RowsAppended(), report.Verdict.OverallSuccess,
		report.Started.UnixMilli(), report.Finished.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: failed to insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_outcomes (run_id, chunk_index, rows, fingerprint, success, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ledger: failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		var errText *string
		if o.Err != nil {
			s := o.Err.Error()
			errText = &s
		}
		if _, err := stmt.ExecContext(ctx,
			report.RunID, o.ChunkIndex, o.Rows, o.Fingerprint, o.Success, errText, o.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("ledger: failed to insert outcome for chunk %d: %w", o.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: failed to commit run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all runs.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, source_file, table_ident, total_chunks, succeeded, failed,
		       rows_appended, overall_success, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, run_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished int64
		if err := rows.Scan(
			&r.RunID, &r.SourceFile, &r.Table, &r.TotalChunks, &r.Succeeded, &r.Failed,
			&r.RowsAppended, &r.OverallSuccess, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ChunkRecord is one stored chunk outcome.
type ChunkRecord struct {
	Index       int
	Rows        int
	Fingerprint string
	Error       string
	Duration    time.Duration
}

// FailedChunks returns the failed chunk outcomes of a run, by chunk index.
func (l *Ledger) FailedChunks(ctx context.Context, runID string) ([]ChunkRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT chunk_index, rows, COALESCE(fingerprint, ''), COALESCE(error, ''), duration_ms
		FROM chunk_outcomes
		WHERE run_id = ? AND success = 0
		ORDER BY chunk_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query failed chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var durationMS int64
		if err := rows.Scan(&c.Index, &c.Rows, &c.Fingerprint, &c.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan chunk outcome: %w", err)
		}
		c.Duration = time.Duration(durationMS) * time.Millisecond
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
