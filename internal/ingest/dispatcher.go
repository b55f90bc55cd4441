package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkilian/lakeingest/internal/catalog"
	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Appender is the catalog operation the dispatcher needs.
type Appender interface {
	AppendRows(ctx context.Context, handle *catalog.TableHandle, req catalog.AppendRequest) error
}

// Dispatcher appends chunks through a bounded pool of workers. Each chunk is
// attempted at most once and a failure never affects other chunks.
type Dispatcher struct {
	appender Appender
	workers  int
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with the given pool size.
func NewDispatcher(appender Appender, workers int, observer Observer, logger *slog.Logger) (*Dispatcher, error) {
	if workers <= 0 {
		return nil, ingesterr.NewConfigError(ingesterr.CodeInvalidWorkerCount,
			fmt.Sprintf("worker count must be positive, got %d", workers))
	}
	if observer == nil {
		observer = MultiObserver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{appender: appender, workers: workers, observer: observer, logger: logger}, nil
}

// Batch is the input of one dispatch.
type Batch struct {
	RunID  string
	Schema types.Schema
	Chunks []types.Chunk
}

// Dispatch appends every chunk and returns one outcome per chunk, in
// completion order. It waits for all workers to drain. If ctx is cancelled,
// chunks that have not started are reported as failed without an append.
func (d *Dispatcher) Dispatch(ctx context.Context, handle *catalog.TableHandle, batch Batch) []types.ChunkOutcome {
	chunks := batch.Chunks
	if len(chunks) == 0 {
		return nil
	}

	results := make(chan types.ChunkOutcome, len(chunks))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for _, chunk := range chunks {
		d.goSafe(&g, chunk, results, func() types.ChunkOutcome {
			if ctx.Err() != nil {
				return d.notAttempted(ctx, chunk)
			}
			return d.appendChunk(ctx, handle, batch, chunk)
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Error("Dispatch worker failed", "error", err)
	}
	close(results)

	outcomes := make([]types.ChunkOutcome, 0, len(chunks))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// goSafe runs fn on the group and sends its outcome. A panic that escapes fn
// still produces exactly one failed outcome for the chunk and is returned to
// the group as an error.
func (d *Dispatcher) goSafe(g *errgroup.Group, chunk types.Chunk, results chan<- types.ChunkOutcome, fn func() types.ChunkOutcome) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("panic recovered",
					"component", "dispatcher",
					"chunk", chunk.Index,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				results <- types.ChunkOutcome{
					ChunkIndex: chunk.Index,
					Rows:       chunk.Len(),
					Err: ingesterr.NewInternalError(fmt.Sprintf("worker panicked on chunk %d, append state unknown", chunk.Index), nil).
						WithDetails(map[string]interface{}{"offset": chunk.Offset, "panic": fmt.Sprint(r)}),
				}
				err = fmt.Errorf("panic in dispatcher worker for chunk %d: %v", chunk.Index, r)
			}
		}()
		results <- fn()
		return nil
	})
}

func (d *Dispatcher) notAttempted(ctx context.Context, chunk types.Chunk) types.ChunkOutcome {
	o := types.ChunkOutcome{
		ChunkIndex: chunk.Index,
		Rows:       chunk.Len(),
		Err: ingesterr.NewAppendError(ingesterr.CodeNotAttempted,
			fmt.Sprintf("chunk %d was not attempted", chunk.Index), ctx.Err()).
			WithDetails(map[string]interface{}{"offset": chunk.Offset}),
	}
	d.observer.ChunkFinished(o)
	return o
}

// appendChunk runs a single append. A panic in the appender becomes a failed outcome.
func (d *Dispatcher) appendChunk(ctx context.Context, handle *catalog.TableHandle, batch Batch, chunk types.Chunk) (outcome types.ChunkOutcome) {
	start := time.Now()
	outcome = types.ChunkOutcome{
		ChunkIndex:  chunk.Index,
		Rows:        chunk.Len(),
		Fingerprint: chunk.Fingerprint(),
	}
	d.observer.ChunkStarted(chunk)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered",
				"component", "dispatcher",
				"chunk", chunk.Index,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			outcome.Success = false
			outcome.Err = ingesterr.NewInternalError(fmt.Sprintf("panic appending chunk %d: %v", chunk.Index, r), nil).
				WithDetails(map[string]interface{}{"offset": chunk.Offset, "panic": fmt.Sprint(r)})
		}
		outcome.Duration = time.Since(start)
		d.observer.ChunkFinished(outcome)
	}()

	err := d.appender.AppendRows(ctx, handle, catalog.AppendRequest{
		RunID:       batch.RunID,
		Schema:      batch.Schema,
		Chunk:       chunk,
		Fingerprint: outcome.Fingerprint,
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Success = true
	return outcome
}
