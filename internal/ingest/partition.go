package ingest

import (
	"fmt"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Partition splits the dataset into contiguous chunks of at most chunkSize
// rows, in row order. The last chunk may be short. Zero rows yield no chunks.
// Chunks share the dataset's row storage.
func Partition(ds *types.Dataset, chunkSize int) ([]types.Chunk, error) {
	if chunkSize <= 0 {
		return nil, ingesterr.Wrap(ingesterr.ErrCategoryConfig, ingesterr.CodeInvalidChunkSize,
			fmt.Sprintf("cannot partition with chunk size %d", chunkSize), types.ErrInvalidChunkSize)
	}

	n := ds.Len()
	if n == 0 {
		return nil, nil
	}

	chunks := make([]types.Chunk, 0, (n+chunkSize-1)/chunkSize)
	for offset := 0; offset < n; offset += chunkSize {
		end := min(offset+chunkSize, n)
		chunks = append(chunks, types.Chunk{
			Index:  len(chunks),
			Offset: offset,
			Rows:   ds.Rows[offset:end:end],
		})
	}
	return chunks, nil
}
