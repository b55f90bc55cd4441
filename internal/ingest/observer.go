package ingest

import (
	"log/slog"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Observer is notified as chunks move through the dispatcher. Methods are
// called from worker goroutines and must be safe for concurrent use.
type Observer interface {
	ChunkStarted(chunk types.Chunk)
	ChunkFinished(outcome types.ChunkOutcome)
}

// LoggingObserver reports chunk progress through slog.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer; nil logger uses slog.Default().
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) ChunkStarted(chunk types.Chunk) {
	o.logger.Debug("Appending chunk", "chunk", chunk.Index, "offset", chunk.Offset, "rows", chunk.Len())
}

func (o *LoggingObserver) ChunkFinished(outcome types.ChunkOutcome) {
	if outcome.Success {
		o.logger.Info("✓ Chunk appended",
			"chunk", outcome.ChunkIndex,
			"rows", outcome.Rows,
			"duration", outcome.Duration)
		return
	}
	attrs := []any{
		"chunk", outcome.ChunkIndex,
		"rows", outcome.Rows,
		"duration", outcome.Duration,
		"error", outcome.Description(),
	}
	if details := ingesterr.GetDetails(outcome.Err); details != nil {
		attrs = append(attrs, "details", details)
	}
	o.logger.Error("✗ Chunk failed", attrs...)
}

type multiObserver []Observer

// MultiObserver fans notifications out to every non-nil observer.
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) ChunkStarted(chunk types.Chunk) {
	for _, o := range m {
		o.ChunkStarted(chunk)
	}
}

func (m multiObserver) ChunkFinished(outcome types.ChunkOutcome) {
	for _, o := range m {
		o.ChunkFinished(outcome)
	}
}
