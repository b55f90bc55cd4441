package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arkilian/lakeingest/internal/catalog"
	"github.com/arkilian/lakeingest/pkg/types"
)

// fakeClient is an in-memory catalog.Client.
type fakeClient struct {
	mu sync.Mutex

	namespaces map[string]bool
	tables     map[string]*catalog.TableHandle
	appended   map[string][]types.Chunk

	// failChunks makes AppendRows fail for these chunk indexes.
	failChunks map[int]error
	// panicChunks makes AppendRows panic for these chunk indexes.
	panicChunks map[int]bool

	namespaceErr error
	loadErr      error
	createErr    error
	dropErr      error

	calls       []string
	appendCalls atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	// appendHook runs inside AppendRows before the outcome is decided.
	appendHook func(ctx context.Context, chunk types.Chunk)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		namespaces:  make(map[string]bool),
		tables:      make(map[string]*catalog.TableHandle),
		appended:    make(map[string][]types.Chunk),
		failChunks:  make(map[int]error),
		panicChunks: make(map[int]bool),
	}
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) CreateNamespace(ctx context.Context, namespace string) (catalog.NamespaceResult, error) {
	f.record("create_namespace")
	if f.namespaceErr != nil {
		return catalog.NamespaceFailed, f.namespaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.namespaces[namespace] {
		return catalog.NamespaceExists, nil
	}
	f.namespaces[namespace] = true
	return catalog.NamespaceCreated, nil
}

func (f *fakeClient) LoadTable(ctx context.Context, namespace, name string) (*catalog.TableHandle, error) {
	f.record("load_table")
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.tables[namespace+"."+name]
	if !ok {
		return nil, fmt.Errorf("load %s.%s: %w", namespace, name, catalog.ErrTableNotFound)
	}
	return h, nil
}

func (f *fakeClient) CreateTable(ctx context.Context, namespace, name string, schema types.Schema) (*catalog.TableHandle, error) {
	f.record("create_table")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := namespace + "." + name
	if _, ok := f.tables[key]; ok {
		return nil, catalog.ErrTableExists
	}
	h := &catalog.TableHandle{Namespace: namespace, Name: name, Schema: schema}
	f.tables[key] = h
	return h, nil
}

func (f *fakeClient) DropTable(ctx context.Context, namespace, name string) (catalog.DropResult, error) {
	f.record("drop_table")
	if f.dropErr != nil {
		return catalog.DropFailed, f.dropErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := namespace + "." + name
	if _, ok := f.tables[key]; !ok {
		return catalog.DropNotFound, nil
	}
	delete(f.tables, key)
	return catalog.TableDropped, nil
}

func (f *fakeClient) AppendRows(ctx context.Context, handle *catalog.TableHandle, req catalog.AppendRequest) error {
	f.appendCalls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if f.appendHook != nil {
		f.appendHook(ctx, req.Chunk)
	}
	if f.panicChunks[req.Chunk.Index] {
		panic(fmt.Sprintf("boom on chunk %d", req.Chunk.Index))
	}
	if err, ok := f.failChunks[req.Chunk.Index]; ok {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[handle.Identifier()] = append(f.appended[handle.Identifier()], req.Chunk)
	return nil
}

func (f *fakeClient) rowsIn(ident string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.appended[ident] {
		n += c.Len()
	}
	return n
}

var errAppendRejected = errors.New("catalog rejected append: 500 internal error")

func datasetOf(n int) *types.Dataset {
	ds := &types.Dataset{Schema: types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.ColumnTypeLong},
		{Name: "name", Type: types.ColumnTypeString},
	}}}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, types.Row{int64(i), fmt.Sprintf("user_%d", i)})
	}
	return ds
}
