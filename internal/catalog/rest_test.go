package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	iceberg "github.com/apache/iceberg-go"
	restcatalog "github.com/apache/iceberg-go/catalog/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// fakeRESTCatalog serves the subset of the Iceberg REST protocol the client
// touches. Status codes per route are configurable.
type fakeRESTCatalog struct {
	srv *httptest.Server

	namespaceStatus int
	loadStatus      int
	dropStatus      int
	createStatus    int

	mu         sync.Mutex
	authHeader string
	events     []RequestEvent
}

func newFakeRESTCatalog(t *testing.T) *fakeRESTCatalog {
	t.Helper()
	f := &fakeRESTCatalog{
		namespaceStatus: http.StatusOK,
		loadStatus:      http.StatusNotFound,
		dropStatus:      http.StatusNoContent,
		createStatus:    http.StatusConflict,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/config", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authHeader = r.Header.Get("Authorization")
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"defaults":  map[string]any{},
			"overrides": map[string]any{},
		})
	})
	mux.HandleFunc("/v1/namespaces", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, f.namespaceStatus, "AlreadyExistsException")
	})
	mux.HandleFunc("/v1/namespaces/default/tables", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, f.createStatus, "AlreadyExistsException")
	})
	mux.HandleFunc("/v1/namespaces/default/tables/t", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			f.respond(w, f.dropStatus, "NoSuchTableException")
		default:
			f.respond(w, f.loadStatus, "NoSuchTableException")
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRESTCatalog) respond(w http.ResponseWriter, status int, errType string) {
	switch {
	case status == http.StatusNoContent:
		w.WriteHeader(status)
	case status < 400:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, "{}")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rejected by fake catalog", "type": errType, "code": status},
		})
	}
}

func (f *fakeRESTCatalog) observe(e RequestEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeRESTCatalog) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeRESTCatalog) client(t *testing.T) *RESTClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewRESTClient(context.Background(), RESTConfig{
		Name:      "test",
		URL:       f.srv.URL,
		Warehouse: "demo",
		Token:     "dummy",
		Transport: NewTransport(nil, f.observe, logger),
		Logger:    logger,
	})
	require.NoError(t, err)
	return c
}

func TestRESTClient_ConnectSendsToken(t *testing.T) {
	f := newFakeRESTCatalog(t)
	f.client(t)

	f.mu.Lock()
	auth := f.authHeader
	f.mu.Unlock()
	assert.Equal(t, "Bearer dummy", auth)
	assert.Equal(t, 1, f.eventCount(), "construction fetches the catalog config")
}

func TestRESTClient_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewRESTClient(context.Background(), RESTConfig{Name: "test", URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, ingesterr.CodeConnectFailed, ingesterr.GetCode(err))
}

func TestRESTClient_CreateNamespace(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   NamespaceResult
		errOK  bool
	}{
		{"created", http.StatusOK, NamespaceCreated, true},
		{"already exists", http.StatusConflict, NamespaceExists, true},
		{"server error", http.StatusInternalServerError, NamespaceFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeRESTCatalog(t)
			f.namespaceStatus = tt.status
			c := f.client(t)

			got, err := c.CreateNamespace(context.Background(), "default")
			assert.Equal(t, tt.want, got)
			if tt.errOK {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, ingesterr.CodeCatalogRejected, ingesterr.GetCode(err))
			}
			assert.Equal(t, 2, f.eventCount())
		})
	}
}

func TestRESTClient_LoadMissingTable(t *testing.T) {
	f := newFakeRESTCatalog(t)
	c := f.client(t)

	_, err := c.LoadTable(context.Background(), "default", "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
	assert.Equal(t, ingesterr.CodeTableNotFound, ingesterr.GetCode(err))
}

func TestRESTClient_DropTable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   DropResult
	}{
		{"dropped", http.StatusNoContent, TableDropped},
		{"not found", http.StatusNotFound, DropNotFound},
		{"server error", http.StatusInternalServerError, DropFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeRESTCatalog(t)
			f.dropStatus = tt.status
			c := f.client(t)

			got, err := c.DropTable(context.Background(), "default", "t")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == DropFailed, err != nil)
		})
	}
}

func TestRESTClient_CreateExistingTable(t *testing.T) {
	f := newFakeRESTCatalog(t)
	c := f.client(t)

	schema := types.Schema{Columns: []types.ColumnDef{{Name: "id", Type: types.ColumnTypeLong}}}
	_, err := c.CreateTable(context.Background(), "default", "t", schema)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableExists))
}

func TestRESTClient_ObserverSeesEveryRequest(t *testing.T) {
	f := newFakeRESTCatalog(t)
	f.namespaceStatus = http.StatusConflict
	f.dropStatus = http.StatusNotFound
	c := f.client(t)
	ctx := context.Background()

	c.CreateNamespace(ctx, "default")
	c.LoadTable(ctx, "default", "t")
	c.DropTable(ctx, "default", "t")

	require.Equal(t, 4, f.eventCount())
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, http.StatusConflict, f.events[1].StatusCode)
	assert.Equal(t, http.MethodDelete, f.events[3].Method)
	assert.Equal(t, http.StatusNotFound, f.events[3].StatusCode)
}

// scriptedAttempts builds a client whose append attempts return errs in order,
// then succeed.
func scriptedAttempts(retries int, errs ...error) (*RESTClient, *int) {
	calls := 0
	c := &RESTClient{
		commitRetries: retries,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.attempt = func(context.Context, *TableHandle, AppendRequest, iceberg.Properties) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}
	return c, &calls
}

func commitConflict() error {
	return classify(restcatalog.ErrCommitFailed, "append chunk 0")
}

func TestAppendRows_CommitRetries(t *testing.T) {
	conflicts := []error{commitConflict(), commitConflict(), commitConflict(), commitConflict()}

	tests := []struct {
		name      string
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"no retries means one attempt", 0, 1, true},
		{"one retry", 1, 2, true},
		{"three retries", 3, 4, true},
		{"enough retries to succeed", 4, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := scriptedAttempts(tt.retries, conflicts...)
			err := c.AppendRows(context.Background(), &TableHandle{Namespace: "default", Name: "t"},
				AppendRequest{RunID: "r", Chunk: types.Chunk{Index: 0}})

			assert.Equal(t, tt.wantCalls, *calls)
			if tt.wantErr {
				assert.Equal(t, ingesterr.CodeCommitConflict, ingesterr.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppendRows_OtherErrorsAreNotRetried(t *testing.T) {
	rejected := classify(errors.New("400 bad request"), "append chunk 0")
	c, calls := scriptedAttempts(5, rejected)

	err := c.AppendRows(context.Background(), &TableHandle{Namespace: "default", Name: "t"},
		AppendRequest{Chunk: types.Chunk{Index: 0}})
	require.Error(t, err)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, ingesterr.CodeCatalogRejected, ingesterr.GetCode(err))
}

func TestAppendRows_SnapshotProperties(t *testing.T) {
	var got iceberg.Properties
	c := &RESTClient{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	c.attempt = func(_ context.Context, _ *TableHandle, _ AppendRequest, props iceberg.Properties) error {
		got = props
		return nil
	}

	chunk := types.Chunk{Index: 3, Rows: []types.Row{{int64(1)}}}
	require.NoError(t, c.AppendRows(context.Background(), &TableHandle{Namespace: "default", Name: "t"},
		AppendRequest{RunID: "run-1", Chunk: chunk}))

	assert.Equal(t, "run-1", got[PropRunID])
	assert.Equal(t, "3", got[PropChunkIndex])
	assert.Equal(t, chunk.Fingerprint(), got[PropChunkFingerprint])
}
