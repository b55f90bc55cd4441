package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/arkilian/lakeingest/internal/catalog"
	"github.com/arkilian/lakeingest/internal/ingest"
	"github.com/arkilian/lakeingest/pkg/types"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleReport(runID string, started time.Time, failChunk int) *ingest.Report {
	outcomes := make([]types.ChunkOutcome, 3)
	v := types.Verdict{TotalChunks: 3}
	for i := range outcomes {
		outcomes[i] = types.ChunkOutcome{ChunkIndex: i, Rows: 10, Fingerprint: "fp", Success: true, Duration: 5 * time.Millisecond}
		if i == failChunk {
			outcomes[i].Success = false
			outcomes[i].Err = errors.New("commit rejected")
			v.Failed++
		} else {
			v.Succeeded++
		}
	}
	v.OverallSuccess = v.Failed == 0
	return &ingest.Report{
		RunID:    runID,
		Verdict:  v,
		Outcomes: outcomes,
		Handle:   &catalog.TableHandle{Namespace: "default", Name: "sample_table"},
		Started:  started,
		Finished: started.Add(time.Second),
	}
}

func TestLedger_RecordAndList(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	if err := l.RecordRun(ctx, sampleReport("run-1", base, -1), "data.csv"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := l.RecordRun(ctx, sampleReport("run-2", base.Add(time.Minute), 1), "data.csv"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := l.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Errorf("expected newest run first, got %s", runs[0].RunID)
	}
	if runs[0].OverallSuccess || runs[0].Failed != 1 || runs[0].RowsAppended != 20 {
		t.Errorf("unexpected run-2 record: %+v", runs[0])
	}
	if !runs[1].OverallSuccess || runs[1].RowsAppended != 30 {
		t.Errorf("unexpected run-1 record: %+v", runs[1])
	}
	if runs[1].Table != "default.sample_table" {
		t.Errorf("table mismatch: got %s", runs[1].Table)
	}
	if runs[1].Duration() != time.Second {
		t.Errorf("duration mismatch: got %v", runs[1].Duration())
	}

	limited, err := l.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run with limit, got %d", len(limited))
	}
}

func TestLedger_FailedChunks(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.RecordRun(ctx, sampleReport("run-1", time.Now(), 2), "data.csv"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	failed, err := l.FailedChunks(ctx, "run-1")
	if err != nil {
		t.Fatalf("FailedChunks failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Index != 2 {
		t.Fatalf("expected chunk 2 to be the only failure, got %+v", failed)
	}
	if failed[0].Error != "commit rejected" || failed[0].Rows != 10 {
		t.Errorf("unexpected failed chunk record: %+v", failed[0])
	}
	if failed[0].Duration != 5*time.Millisecond {
		t.Errorf("duration mismatch: got %v", failed[0].Duration)
	}
}

func TestLedger_DuplicateRunIsRolledBack(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	report := sampleReport("run-1", time.Now(), -1)

	if err := l.RecordRun(ctx, report, "a.csv"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := l.RecordRun(ctx, report, "b.csv"); err == nil {
		t.Fatal("expected error recording a duplicate run id")
	}

	runs, err := l.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].SourceFile != "a.csv" {
		t.Errorf("duplicate run must not alter the ledger: %+v", runs)
	}
}

func TestLedger_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	if err := l.RecordRun(context.Background(), sampleReport("run-1", time.Now(), -1), "a.csv"); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	defer l.Close()

	runs, err := l.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run after reopen, got %d", len(runs))
	}
}

func TestLedger_NilReport(t *testing.T) {
	l := openTestLedger(t)
	if err := l.RecordRun(context.Background(), nil, "a.csv"); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestLedger_FailedChunksUnknownRun(t *testing.T) {
	l := openTestLedger(t)
	failed, err := l.FailedChunks(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("FailedChunks failed: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("expected no chunks, got %+v", failed)
	}
}
