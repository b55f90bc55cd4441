// Package catalog is the facade over an Iceberg REST catalog used by the
// ingestion engine: namespace and table lifecycle plus chunk appends.
package catalog

import (
	"context"
	"errors"

	"github.com/arkilian/lakeingest/pkg/types"
)

// Sentinel errors matched with errors.Is.
var (
	ErrTableNotFound   = errors.New("table not found")
	ErrTableExists     = errors.New("table already exists")
	ErrNamespaceExists = errors.New("namespace already exists")
)

// NamespaceResult is the outcome of CreateNamespace.
type NamespaceResult int

const (
	NamespaceCreated NamespaceResult = iota
	NamespaceExists
	NamespaceFailed
)

func (r NamespaceResult) String() string {
	switch r {
	case NamespaceCreated:
		return "created"
	case NamespaceExists:
		return "exists"
	default:
		return "failed"
	}
}

// DropResult is the outcome of DropTable.
type DropResult int

const (
	TableDropped DropResult = iota
	DropNotFound
	DropFailed
)

func (r DropResult) String() string {
	switch r {
	case TableDropped:
		return "dropped"
	case DropNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// TableHandle refers to a resolved table. It is read-only for the duration of a run.
type TableHandle struct {
	Namespace string
	Name      string

	// Schema is the table's current schema as reported by the catalog
	Schema types.Schema

	// Location is the table's base storage location
	Location string
}

// Identifier returns namespace.name.
func (h *TableHandle) Identifier() string {
	return h.Namespace + "." + h.Name
}

// AppendRequest carries one chunk to append.
type AppendRequest struct {
	// RunID tags the snapshot written by this append
	RunID string

	// Schema positions the values of every row in Chunk
	Schema types.Schema

	Chunk types.Chunk

	// Fingerprint of Chunk; computed on demand when empty
	Fingerprint string
}

// Client is the set of catalog operations the engine depends on.
// Implementations must be safe for concurrent AppendRows calls.
type Client interface {
	// CreateNamespace creates the namespace if absent. An existing namespace
	// yields NamespaceExists with a nil error.
	CreateNamespace(ctx context.Context, namespace string) (NamespaceResult, error)

	// LoadTable returns the handle of an existing table or ErrTableNotFound.
	LoadTable(ctx context.Context, namespace, name string) (*TableHandle, error)

	// CreateTable creates a table with schema. Returns ErrTableExists if it already exists.
	CreateTable(ctx context.Context, namespace, name string, schema types.Schema) (*TableHandle, error)

	// DropTable removes a table. Callers treat it as best-effort.
	DropTable(ctx context.Context, namespace, name string) (DropResult, error)

	// AppendRows appends a chunk in a single atomic transaction.
	AppendRows(ctx context.Context, handle *TableHandle, req AppendRequest) error
}
