package types

import "errors"

// Dataset-related errors
var (
	// ErrRaggedRow is returned when a row's width differs from the schema width
	ErrRaggedRow = errors.New("row width does not match schema")

	// ErrInvalidChunkSize is returned when a dataset is partitioned with a non-positive size
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)
