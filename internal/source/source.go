// Package source loads a delimited text file with a header row into an
// in-memory typed dataset.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/internal/storage"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Options controls how an input file is parsed.
type Options struct {
	// Delimiter is the field separator. Zero selects ',' (or '\t' for .tsv files).
	Delimiter rune

	// Logger receives load progress; nil uses slog.Default().
	Logger *slog.Logger
}

// Load reads path from store, decompressing by extension, and returns the
// typed dataset. The file must start with a header row.
func Load(ctx context.Context, store storage.ObjectStorage, path string, opts Options) (*types.Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc, err := store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ingesterr.NewSourceError(ingesterr.CodeFileNotFound, fmt.Sprintf("file %s not found", path), err)
		}
		return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed, fmt.Sprintf("failed to open %s", path), err)
	}
	defer rc.Close()

	compression := DetectCompression(path)
	r, closeFn, err := NewDecompressor(rc, compression)
	if err != nil {
		return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed, fmt.Sprintf("failed to decompress %s", path), err)
	}
	defer closeFn()

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = defaultDelimiter(path)
	}

	ds, err := Parse(r, delimiter)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded input file",
		"path", path,
		"compression", compression.String(),
		"rows", ds.Len(),
		"columns", len(ds.Schema.Columns))
	return ds, nil
}

// Parse reads delimited records from r, infers the schema and converts every cell.
func Parse(r io.Reader, delimiter rune) (*types.Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed, "input has no header row", err)
	}
	if err != nil {
		return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed, "failed to read header row", err)
	}

	names, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.ErrFieldCount covers ragged rows.
			return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed, "failed to read record", err)
		}
		records = append(records, record)
	}

	schema := inferSchema(names, records)

	rows := make([]types.Row, len(records))
	for i, record := range records {
		row := make(types.Row, len(record))
		for j, cell := range record {
			v, err := convertCell(cell, schema.Columns[j].Type)
			if err != nil {
				return nil, ingesterr.NewSourceError(ingesterr.CodeParseFailed,
					fmt.Sprintf("row %d column %q: cannot convert %q to %s", i+1, names[j], cell, schema.Columns[j].Type), err)
			}
			row[j] = v
		}
		rows[i] = row
	}

	return &types.Dataset{Schema: schema, Rows: rows}, nil
}

// normalizeHeader trims names and rejects empty or duplicate column names.
func normalizeHeader(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, ingesterr.NewSourceError(ingesterr.CodeSchemaInferenceFailed,
				fmt.Sprintf("column %d has an empty name", i+1), nil)
		}
		if _, dup := seen[name]; dup {
			return nil, ingesterr.NewSourceError(ingesterr.CodeSchemaInferenceFailed,
				fmt.Sprintf("duplicate column name %q", name), nil)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names, nil
}

func inferSchema(names []string, records [][]string) types.Schema {
	columns := make([]types.ColumnDef, len(names))
	values := make([]string, len(records))
	for j, name := range names {
		nullable := false
		for i, record := range records {
			values[i] = record[j]
			if strings.TrimSpace(record[j]) == "" {
				nullable = true
			}
		}
		columns[j] = types.ColumnDef{
			Name:     name,
			Type:     inferColumnType(values),
			Nullable: nullable,
		}
	}
	return types.Schema{Columns: columns}
}

func defaultDelimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(TrimCompressionExt(path)), ".tsv") {
		return '\t'
	}
	return ','
}
