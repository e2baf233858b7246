// Package testutil provides testing utilities for the crates.io client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// APIPrefix is the path prefix the mock serves the API under.
const APIPrefix = "/api/v1"

// MockResponse defines the behavior for a mock registry endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request seen by the mock.
type RecordedRequest struct {
	Path     string
	Query    url.Values
	Header   http.Header
	Received time.Time
	Finished time.Time
}

// MockRegistry is a configurable mock crates.io API server for testing.
type MockRegistry struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests []RecordedRequest
	inFlight int
	overlap  bool
}

// NewMockRegistry creates and starts a mock registry.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received := time.Now()

		mock.mu.Lock()
		mock.inFlight++
		if mock.inFlight > 1 {
			mock.overlap = true
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
		} else {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"errors": []map[string]string{{"detail": "Not Found"}},
			})
		}

		mock.mu.Lock()
		mock.inFlight--
		mock.requests = append(mock.requests, RecordedRequest{
			Path:     r.URL.Path,
			Query:    r.URL.Query(),
			Header:   r.Header.Clone(),
			Received: received,
			Finished: time.Now(),
		})
		mock.mu.Unlock()
	}))

	return mock
}

// URL returns the API base URL of the mock, with a trailing slash.
func (m *MockRegistry) URL() string {
	return m.server.URL + APIPrefix + "/"
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for an API path such as "/crates/serde".
func (m *MockRegistry) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[APIPrefix+path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockRegistry) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON configures a 200 response carrying v encoded as JSON.
func (m *MockRegistry) SetJSON(path string, v any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	})
}

// SetPages serves pages[i] for the query parameter page=i+1 and an empty
// page built by empty for any page beyond the list.
func (m *MockRegistry) SetPages(path string, pages []any, empty any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		if page > len(pages) {
			writeJSON(w, http.StatusOK, empty)
			return
		}
		writeJSON(w, http.StatusOK, pages[page-1])
	})
}

// Requests returns every completed request in completion order.
func (m *MockRegistry) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of completed requests.
func (m *MockRegistry) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountPath returns the number of completed requests for an API path.
func (m *MockRegistry) CountPath(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.Path == APIPrefix+path {
			n++
		}
	}
	return n
}

// Overlapped reports whether two requests were ever served at the same time.
func (m *MockRegistry) Overlapped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlap
}

// ErrorEnvelope builds the body of a domain error envelope.
func ErrorEnvelope(details ...string) map[string]any {
	errs := make([]map[string]string, 0, len(details))
	for _, d := range details {
		errs = append(errs, map[string]string{"detail": d})
	}
	return map[string]any{"errors": errs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
