package catalog

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// errorBodyPrefix is how much of a failed response body is logged.
const errorBodyPrefix = 200

// RequestEvent describes one HTTP exchange with the catalog.
type RequestEvent struct {
	Method     string
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
	Duration   time.Duration
}

// RequestObserver receives an event for every catalog HTTP request.
type RequestObserver func(RequestEvent)

// Transport is an http.RoundTripper decorator that logs and reports every
// catalog request. Transport errors are always returned to the caller.
type Transport struct {
	Base     http.RoundTripper
	Observer RequestObserver
	Logger   *slog.Logger
}

// NewTransport wraps base (nil means http.DefaultTransport).
func NewTransport(base http.RoundTripper, observer RequestObserver, logger *slog.Logger) *Transport {
	return &Transport{Base: base, Observer: observer, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	event := RequestEvent{
		Method:   req.Method,
		URL:      req.URL.String(),
		Err:      err,
		Duration: time.Since(start),
	}

	if err != nil {
		logger.Error("Catalog request failed", "method", event.Method, "url", event.URL, "error", err)
		t.observe(event)
		return resp, err
	}

	event.StatusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))

		prefix := body
		if len(prefix) > errorBodyPrefix {
			prefix = prefix[:errorBodyPrefix]
		}
		attrs := []any{"method", event.Method, "url", event.URL, "status", resp.StatusCode}
		if readErr != nil {
			attrs = append(attrs, "read_error", readErr)
		} else {
			attrs = append(attrs, "body", strings.TrimSpace(string(prefix)))
		}
		logger.Warn("Catalog request rejected", attrs...)
	} else {
		logger.Info("Catalog request", "method", event.Method, "url", event.URL, "status", resp.StatusCode)
	}

	t.observe(event)
	return resp, nil
}

func (t *Transport) observe(event RequestEvent) {
	if t.Observer != nil {
		t.Observer(event)
	}
}

// MultiObserver fans an event out to several observers.
func MultiObserver(observers ...RequestObserver) RequestObserver {
	return func(e RequestEvent) {
		for _, o := range observers {
			if o != nil {
				o(e)
			}
		}
	}
}
