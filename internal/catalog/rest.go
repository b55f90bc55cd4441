package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	iceberg "github.com/apache/iceberg-go"
	icecatalog "github.com/apache/iceberg-go/catalog"
	restcatalog "github.com/apache/iceberg-go/catalog/rest"
	"github.com/apache/iceberg-go/table"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// Snapshot summary properties written with every append.
const (
	PropRunID            = "lakeingest.run-id"
	PropChunkIndex       = "lakeingest.chunk-index"
	PropChunkFingerprint = "lakeingest.chunk-fingerprint"
)

// RESTConfig holds the connection parameters of an Iceberg REST catalog.
type RESTConfig struct {
	Name      string
	URL       string
	Warehouse string
	Token     string
	Prefix    string

	// CommitRetries is how many times an append whose commit lost an
	// optimistic-concurrency race is rebuilt on fresh metadata. Any other
	// failure is returned immediately.
	CommitRetries int

	// Transport carries every catalog request; nil uses http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// RESTClient implements Client on top of iceberg-go's REST catalog.
type RESTClient struct {
	cat           *restcatalog.Catalog
	commitRetries int
	logger        *slog.Logger

	// attempt performs one reload-convert-commit cycle for AppendRows.
	attempt func(ctx context.Context, handle *TableHandle, req AppendRequest, props iceberg.Properties) error
}

// NewRESTClient connects to the catalog. The catalog's config endpoint is
// queried during construction, so an unreachable catalog fails here.
func NewRESTClient(ctx context.Context, cfg RESTConfig) (*RESTClient, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []restcatalog.Option{
		restcatalog.WithWarehouseLocation(cfg.Warehouse),
	}
	if cfg.Token != "" {
		opts = append(opts, restcatalog.WithOAuthToken(cfg.Token))
	}
	if cfg.Prefix != "" {
		opts = append(opts, restcatalog.WithPrefix(cfg.Prefix))
	}
	if cfg.Transport != nil {
		opts = append(opts, restcatalog.WithCustomTransport(cfg.Transport))
	}

	cat, err := restcatalog.NewCatalog(ctx, cfg.Name, cfg.URL, opts...)
	if err != nil {
		return nil, ingesterr.NewCatalogError(ingesterr.CodeConnectFailed,
			fmt.Sprintf("failed to connect to catalog %s at %s", cfg.Name, cfg.URL), err)
	}

	logger.Info("Connected to catalog", "name", cfg.Name, "url", cfg.URL, "warehouse", cfg.Warehouse)
	c := &RESTClient{cat: cat, commitRetries: cfg.CommitRetries, logger: logger}
	c.attempt = c.reloadAndAppend
	return c, nil
}

func identifier(namespace, name string) table.Identifier {
	return table.Identifier{namespace, name}
}

// CreateNamespace creates the namespace if absent.
func (c *RESTClient) CreateNamespace(ctx context.Context, namespace string) (NamespaceResult, error) {
	err := c.cat.CreateNamespace(ctx, table.Identifier{namespace}, iceberg.Properties{})
	switch {
	case err == nil:
		return NamespaceCreated, nil
	case errors.Is(err, icecatalog.ErrNamespaceAlreadyExists):
		return NamespaceExists, nil
	default:
		return NamespaceFailed, classify(err, fmt.Sprintf("create namespace %s", namespace))
	}
}

// LoadTable returns the handle of an existing table.
func (c *RESTClient) LoadTable(ctx context.Context, namespace, name string) (*TableHandle, error) {
	tbl, err := c.cat.LoadTable(ctx, identifier(namespace, name))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("load table %s.%s", namespace, name))
	}
	return handleFor(namespace, name, tbl), nil
}

// CreateTable creates a table with the given schema.
func (c *RESTClient) CreateTable(ctx context.Context, namespace, name string, schema types.Schema) (*TableHandle, error) {
	icebergSchema, err := ToIcebergSchema(schema)
	if err != nil {
		return nil, ingesterr.NewCatalogError(ingesterr.CodeCatalogRejected, "invalid table schema", err)
	}

	tbl, err := c.cat.CreateTable(ctx, identifier(namespace, name), icebergSchema)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("create table %s.%s", namespace, name))
	}
	return handleFor(namespace, name, tbl), nil
}

// DropTable removes a table.
func (c *RESTClient) DropTable(ctx context.Context, namespace, name string) (DropResult, error) {
	err := c.cat.DropTable(ctx, identifier(namespace, name))
	switch {
	case err == nil:
		return TableDropped, nil
	case errors.Is(err, icecatalog.ErrNoSuchTable):
		return DropNotFound, nil
	default:
		return DropFailed, classify(err, fmt.Sprintf("drop table %s.%s", namespace, name))
	}
}

// AppendRows reloads the table so the commit builds on current metadata,
// converts the chunk to Arrow and appends it as one snapshot. Only a commit
// conflict is retried, at most commitRetries times.
func (c *RESTClient) AppendRows(ctx context.Context, handle *TableHandle, req AppendRequest) error {
	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = req.Chunk.Fingerprint()
	}
	props := iceberg.Properties{
		PropRunID:            req.RunID,
		PropChunkIndex:       strconv.Itoa(req.Chunk.Index),
		PropChunkFingerprint: fingerprint,
	}

	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, handle, req, props)
		if err == nil {
			return nil
		}
		if isCommitConflict(err) && attempt < c.commitRetries {
			c.logger.Warn("Commit conflict, rebuilding append on fresh metadata",
				"table", handle.Identifier(), "chunk", req.Chunk.Index, "attempt", attempt+1)
			continue
		}
		return err
	}
}

func (c *RESTClient) reloadAndAppend(ctx context.Context, handle *TableHandle, req AppendRequest, props iceberg.Properties) error {
	tbl, err := c.cat.LoadTable(ctx, identifier(handle.Namespace, handle.Name))
	if err != nil {
		return classify(err, fmt.Sprintf("reload table %s", handle.Identifier()))
	}
	return c.appendOnce(ctx, tbl, req, props)
}

func (c *RESTClient) appendOnce(ctx context.Context, tbl *table.Table, req AppendRequest, props iceberg.Properties) error {
	arrowSchema, err := table.SchemaToArrowSchema(tbl.Schema(), nil, true, false)
	if err != nil {
		return ingesterr.NewAppendError(ingesterr.CodeConvertFailed, "failed to derive arrow schema", err)
	}

	rec, err := chunkToRecord(arrowSchema, req.Schema, req.Chunk.Rows)
	if err != nil {
		return ingesterr.NewAppendError(ingesterr.CodeConvertFailed,
			fmt.Sprintf("chunk %d does not fit the table schema", req.Chunk.Index), err)
	}
	rdr, err := array.NewRecordReader(arrowSchema, []arrow.Record{rec})
	rec.Release()
	if err != nil {
		return ingesterr.NewAppendError(ingesterr.CodeConvertFailed, "failed to build record reader", err)
	}
	defer rdr.Release()

	if _, err := tbl.Append(ctx, rdr, props); err != nil {
		return classify(err, fmt.Sprintf("append chunk %d", req.Chunk.Index))
	}
	return nil
}

func handleFor(namespace, name string, tbl *table.Table) *TableHandle {
	return &TableHandle{
		Namespace: namespace,
		Name:      name,
		Schema:    FromIcebergSchema(tbl.Schema()),
		Location:  tbl.Location(),
	}
}

func isCommitConflict(err error) bool {
	return ingesterr.GetCode(err) == ingesterr.CodeCommitConflict
}

// classify maps an iceberg-go error onto the facade's sentinels and error codes.
func classify(err error, op string) error {
	switch {
	case errors.Is(err, icecatalog.ErrNoSuchTable):
		return ingesterr.NewCatalogError(ingesterr.CodeTableNotFound, op, errors.Join(ErrTableNotFound, err))
	case errors.Is(err, icecatalog.ErrTableAlreadyExists):
		return ingesterr.NewCatalogError(ingesterr.CodeTableExists, op, errors.Join(ErrTableExists, err))
	case errors.Is(err, icecatalog.ErrNamespaceAlreadyExists):
		return ingesterr.NewCatalogError(ingesterr.CodeNamespaceExists, op, errors.Join(ErrNamespaceExists, err))
	case errors.Is(err, restcatalog.ErrCommitFailed),
		strings.Contains(err.Error(), "branch main was created concurrently"):
		return ingesterr.NewCatalogError(ingesterr.CodeCommitConflict, op, err)
	case isTransportError(err):
		return ingesterr.NewCatalogError(ingesterr.CodeTransportFailed, op, err)
	default:
		return ingesterr.NewCatalogError(ingesterr.CodeCatalogRejected, op, err)
	}
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
