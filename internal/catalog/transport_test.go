package catalog

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []RequestEvent
}

func (r *recordingObserver) observe(e RequestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestTransport_ObservesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &recordingObserver{}
	client := &http.Client{Transport: NewTransport(nil, rec.observe, slog.New(slog.NewTextHandler(io.Discard, nil)))}

	resp, err := client.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, `{"ok":true}`, string(body))
	require.Len(t, rec.events, 1)
	assert.Equal(t, http.MethodGet, rec.events[0].Method)
	assert.Equal(t, srv.URL+"/v1/config", rec.events[0].URL)
	assert.Equal(t, http.StatusOK, rec.events[0].StatusCode)
	assert.NoError(t, rec.events[0].Err)
}

func TestTransport_LogsErrorBodyPrefixAndPreservesBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	rec := &recordingObserver{}
	client := &http.Client{Transport: NewTransport(http.DefaultTransport, rec.observe, slog.New(slog.NewTextHandler(&logs, nil)))}

	resp, err := client.Post(srv.URL+"/v1/namespaces", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, long, string(body), "downstream still sees the full body")
	assert.Contains(t, logs.String(), "status=409")
	assert.Contains(t, logs.String(), strings.Repeat("x", errorBodyPrefix))
	assert.NotContains(t, logs.String(), strings.Repeat("x", errorBodyPrefix+1))
	require.Len(t, rec.events, 1)
	assert.Equal(t, http.StatusConflict, rec.events[0].StatusCode)
}

type failingTripper struct{ err error }

func (f failingTripper) RoundTrip(*http.Request) (*http.Response, error) { return nil, f.err }

func TestTransport_PropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	rec := &recordingObserver{}
	tr := NewTransport(failingTripper{err: boom}, rec.observe, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req, err := http.NewRequest(http.MethodPost, "http://catalog.invalid/v1/tables", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.events, 1)
	assert.Zero(t, rec.events[0].StatusCode)
	assert.ErrorIs(t, rec.events[0].Err, boom)
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	MultiObserver(a.observe, nil, b.observe)(RequestEvent{Method: "GET"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
