// Package ledger keeps a local SQLite audit trail of ingestion runs.
package ledger

// CreateRunsTableSQL creates the table holding one row per run.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    source_file TEXT NOT NULL,
    table_ident TEXT NOT NULL,
    total_chunks INTEGER NOT NULL,
    succeeded INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    rows_appended INTEGER NOT NULL,
    overall_success INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
)`

// CreateChunkOutcomesTableSQL creates the per-chunk outcome table.
const CreateChunkOutcomesTableSQL = `
CREATE TABLE IF NOT EXISTS chunk_outcomes (
    run_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    rows INTEGER NOT NULL,
    fingerprint TEXT,
    success INTEGER NOT NULL,
    error TEXT,
    duration_ms INTEGER NOT NULL,
    PRIMARY KEY (run_id, chunk_index),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chunk_outcomes_failed ON chunk_outcomes(run_id) WHERE success = 0`,
}

// AllSchemaSQL returns every statement needed to initialise the ledger, in order.
func AllSchemaSQL() []string {
	stmts := []string{CreateRunsTableSQL, CreateChunkOutcomesTableSQL}
	return append(stmts, createIndexesSQL...)
}
