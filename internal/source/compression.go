package source

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies how an input file is compressed.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGZ
	CompressionBZ2
	CompressionXZ
	CompressionZSTD
	CompressionSnappy
)

var compressionExtensions = map[string]Compression{
	".gz":  CompressionGZ,
	".bz2": CompressionBZ2,
	".xz":  CompressionXZ,
	".zst": CompressionZSTD,
	".sz":  CompressionSnappy,
}

// String returns the codec name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGZ:
		return "gzip"
	case CompressionBZ2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	case CompressionZSTD:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// DetectCompression returns the compression implied by the file extension.
func DetectCompression(path string) Compression {
	if c, ok := compressionExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return CompressionNone
}

// TrimCompressionExt strips a recognised compression extension, so that
// "events.tsv.gz" yields "events.tsv".
func TrimCompressionExt(path string) string {
	ext := filepath.Ext(path)
	if _, ok := compressionExtensions[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(path, ext)
	}
	return path
}

// NewDecompressor wraps r with a decompressing reader. The returned close func
// releases decoder resources; it does not close r.
func NewDecompressor(r io.Reader, c Compression) (io.Reader, func() error, error) {
	noop := func() error { return nil }

	switch c {
	case CompressionNone:
		return r, noop, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(r), noop, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, noop, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil

	case CompressionSnappy:
		// Framed stream format, as written by snappy.NewBufferedWriter.
		return snappy.NewReader(r), noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression: %v", c)
	}
}
