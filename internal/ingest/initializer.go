package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkilian/lakeingest/internal/catalog"
	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Initializer makes sure the target table exists before any chunk is appended.
type Initializer struct {
	client catalog.Client
	logger *slog.Logger
}

// NewInitializer creates an initializer over client.
func NewInitializer(client catalog.Client, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{client: client, logger: logger}
}

// EnsureTable returns a handle to namespace.name, creating the namespace and
// the table when they are missing.
//
// An existing table is reused as-is; its schema is not reconciled with schema.
// A missing table is dropped (clearing partial artifacts of an earlier failed
// create) and then created. Drop and create are separate catalog calls, so two
// initializers racing on the same identifier can interleave.
func (i *Initializer) EnsureTable(ctx context.Context, namespace, name string, schema types.Schema) (*catalog.TableHandle, error) {
	ident := namespace + "." + name

	result, err := i.client.CreateNamespace(ctx, namespace)
	switch result {
	case catalog.NamespaceCreated:
		i.logger.Info("Created namespace", "namespace", namespace)
	case catalog.NamespaceExists:
		i.logger.Info("Namespace already exists", "namespace", namespace)
	default:
		// The namespace may still exist; the table load below decides.
		i.logger.Warn("Could not create namespace, continuing", "namespace", namespace, "error", err)
	}

	handle, err := i.client.LoadTable(ctx, namespace, name)
	if err == nil {
		i.logger.Info("Using existing table", "table", ident, "columns", len(handle.Schema.Columns))
		return handle, nil
	}
	if !errors.Is(err, catalog.ErrTableNotFound) {
		return nil, ingesterr.NewInitError(ingesterr.CodeLoadFailed, fmt.Sprintf("failed to load table %s", ident), err)
	}

	i.logger.Info("Table not found, creating", "table", ident)

	drop, err := i.client.DropTable(ctx, namespace, name)
	switch drop {
	case catalog.TableDropped:
		i.logger.Warn("Dropped leftover table before create", "table", ident)
	case catalog.DropFailed:
		i.logger.Warn("Pre-create drop failed, continuing", "table", ident, "error", err)
	}

	handle, err = i.client.CreateTable(ctx, namespace, name, schema)
	if err == nil {
		i.logger.Info("Created table", "table", ident, "columns", len(schema.Columns))
		return handle, nil
	}

	if errors.Is(err, catalog.ErrTableExists) {
		// Another creator won the race; use its table.
		if handle, loadErr := i.client.LoadTable(ctx, namespace, name); loadErr == nil {
			i.logger.Info("Table created concurrently, using it", "table", ident)
			return handle, nil
		}
	}
	return nil, ingesterr.NewInitError(ingesterr.CodeCreateFailed, fmt.Sprintf("failed to create table %s", ident), err)
}
