package types

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/spaolacci/murmur3"
)

// Chunk is a contiguous, immutable slice of a dataset appended as one
// transaction.
type Chunk struct {
	// Index is the 0-based position of the chunk in source order
	Index int `json:"index"`

	// Offset is the index of the chunk's first row in the dataset
	Offset int `json:"offset"`

	// Rows shares backing storage with the dataset and must not be modified
	Rows []Row `json:"-"`
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return len(c.Rows)
}

// Fingerprint returns a murmur3-128 digest of the chunk contents, hex encoded.
// Two chunks with equal values in equal order have equal fingerprints.
func (c Chunk) Fingerprint() string {
	h := murmur3.New128()
	var buf [9]byte
	for _, row := range c.Rows {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(row)))
		h.Write(buf[:4])
		for _, v := range row {
			h.Write(encodeValue(buf[:], v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// encodeValue writes a tagged, fixed-width or length-prefixed encoding of v.
func encodeValue(buf []byte, v Value) []byte {
	switch x := v.(type) {
	case nil:
		buf[0] = 0
		return buf[:1]
	case string:
		out := make([]byte, 5+len(x))
		out[0] = 1
		binary.BigEndian.PutUint32(out[1:5], uint32(len(x)))
		copy(out[5:], x)
		return out
	case int64:
		buf[0] = 2
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		return buf[:9]
	case float64:
		buf[0] = 3
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(x))
		return buf[:9]
	case bool:
		buf[0] = 4
		if x {
			buf[1] = 1
		} else {
			buf[1] = 0
		}
		return buf[:2]
	case time.Time:
		buf[0] = 5
		binary.BigEndian.PutUint64(buf[1:], uint64(x.UnixNano()))
		return buf[:9]
	default:
		buf[0] = 0xff
		return buf[:1]
	}
}

// ChunkOutcome is the terminal result of one chunk's append attempt.
type ChunkOutcome struct {
	ChunkIndex  int           `json:"chunk_index"`
	Rows        int           `json:"rows"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Success     bool          `json:"success"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// Description returns the error text for a failed outcome, or "".
func (o ChunkOutcome) Description() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Verdict is the overall result of one ingestion run.
type Verdict struct {
	TotalChunks    int  `json:"total_chunks"`
	Succeeded      int  `json:"succeeded"`
	Failed         int  `json:"failed"`
	OverallSuccess bool `json:"overall_success"`
}
