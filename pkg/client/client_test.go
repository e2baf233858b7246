package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/cratesio-client/internal/testutil"
	"github.com/Sternrassler/cratesio-client/pkg/ratelimit"
	"github.com/Sternrassler/cratesio-client/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

const testUserAgent = "cratesio-client-test (test@example.com)"

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestClient creates a client against mock without rate limiting.
func newTestClient(t *testing.T, mock *testutil.MockRegistry, opts ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(testUserAgent)
	cfg.BaseURL = mock.URL()
	cfg.RateLimit = 0
	logger := zerolog.Nop()
	cfg.Logger = &logger
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func newMock(t *testing.T) *testutil.MockRegistry {
	t.Helper()
	mock := testutil.NewMockRegistry()
	t.Cleanup(mock.Close)
	return mock
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig(testUserAgent),
		},
		{
			name:   "zero rate limit",
			config: Config{UserAgent: testUserAgent},
		},
		{
			name:        "missing user agent",
			config:      Config{RateLimit: time.Second},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "user agent with newline",
			config:      Config{UserAgent: "bot\r\nX-Injected: 1"},
			expectError: true,
			errorMsg:    "user-agent contains invalid characters",
		},
		{
			name:        "negative rate limit",
			config:      Config{UserAgent: testUserAgent, RateLimit: -time.Second},
			expectError: true,
			errorMsg:    "rate_limit must be >= 0 (got -1s)",
		},
		{
			name:        "invalid base url",
			config:      Config{UserAgent: testUserAgent, BaseURL: "http://[::1"},
			expectError: true,
			errorMsg:    "parse base url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("New() expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("New() error = %q, want containing %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("New() unexpected error = %v", err)
			}
			if c == nil {
				t.Fatal("New() returned nil client")
			}
		})
	}
}

func TestNew_BaseURLTrailingSlash(t *testing.T) {
	c, err := New(Config{UserAgent: testUserAgent, BaseURL: "https://example.com/api/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := c.endpointURL("crates", "serde").String(), "https://example.com/api/v1/crates/serde"; got != want {
		t.Errorf("endpointURL = %q, want %q", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(testUserAgent)

	if cfg.UserAgent != testUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, testUserAgent)
	}
	if cfg.RateLimit != time.Second {
		t.Errorf("RateLimit = %v, want 1s", cfg.RateLimit)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.HTTPClient != nil || cfg.Redis != nil {
		t.Error("DefaultConfig should not set an HTTP client or Redis")
	}
}

func TestGet_SendsHeaders(t *testing.T) {
	mock := newMock(t)
	mock.SetJSON("/summary", types.Summary{NumCrates: 3})
	c := newTestClient(t, mock)

	summary, err := c.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.NumCrates != 3 {
		t.Errorf("NumCrates = %d, want 3", summary.NumCrates)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Header.Get("User-Agent"); got != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, testUserAgent)
	}
	if got := reqs[0].Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestGet_ResponseClassification(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *testutil.MockRegistry)
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name: "success",
			setup: func(m *testutil.MockRegistry) {
				m.SetJSON("/crates/demo", types.CrateResponse{Crate: types.Crate{Name: "demo"}})
			},
		},
		{
			name: "empty errors array is success",
			setup: func(m *testutil.MockRegistry) {
				m.SetResponse("/crates/demo", testutil.MockResponse{
					StatusCode: http.StatusOK,
					Body:       `{"errors":[],"crate":{"name":"demo"},"versions":[]}`,
				})
			},
		},
		{
			name:    "404 is not found",
			setup:   func(m *testutil.MockRegistry) {},
			wantErr: ErrNotFound,
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				if !errors.As(err, &nf) {
					t.Fatalf("error type = %T, want *NotFoundError", err)
				}
				if !strings.HasSuffix(nf.URL, "/api/v1/crates/demo") {
					t.Errorf("URL = %q, want request url", nf.URL)
				}
			},
		},
		{
			name: "403 is permission denied with body",
			setup: func(m *testutil.MockRegistry) {
				m.SetResponse("/crates/demo", testutil.MockResponse{
					StatusCode: http.StatusForbidden,
					Body:       "crawler blocked",
				})
			},
			wantErr: ErrPermissionDenied,
			check: func(t *testing.T, err error) {
				var pd *PermissionDeniedError
				if !errors.As(err, &pd) {
					t.Fatalf("error type = %T, want *PermissionDeniedError", err)
				}
				if pd.Reason != "crawler blocked" {
					t.Errorf("Reason = %q, want %q", pd.Reason, "crawler blocked")
				}
			},
		},
		{
			name: "500 is server transport error",
			setup: func(m *testutil.MockRegistry) {
				m.SetResponse("/crates/demo", testutil.MockResponse{StatusCode: http.StatusInternalServerError})
			},
			wantErr: ErrTransport,
			check: func(t *testing.T, err error) {
				var te *TransportError
				if !errors.As(err, &te) {
					t.Fatalf("error type = %T, want *TransportError", err)
				}
				if te.StatusCode != 500 || te.ErrorClass != ErrorClassServer {
					t.Errorf("TransportError = (%d, %s), want (500, server)", te.StatusCode, te.ErrorClass)
				}
			},
		},
		{
			name: "429 is client transport error",
			setup: func(m *testutil.MockRegistry) {
				m.SetResponse("/crates/demo", testutil.MockResponse{StatusCode: http.StatusTooManyRequests})
			},
			wantErr: ErrTransport,
			check: func(t *testing.T, err error) {
				var te *TransportError
				if !errors.As(err, &te) || te.ErrorClass != ErrorClassClient {
					t.Errorf("error = %v, want client transport error", err)
				}
			},
		},
		{
			name: "error envelope is api error",
			setup: func(m *testutil.MockRegistry) {
				m.SetJSON("/crates/demo", testutil.ErrorEnvelope("crate `demo` does not exist"))
			},
			wantErr: ErrAPI,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error type = %T, want *APIError", err)
				}
				want := []types.APIErrorDetail{{Detail: "crate `demo` does not exist"}}
				if diff := cmp.Diff(want, apiErr.Errors); diff != "" {
					t.Errorf("Errors mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "malformed body is decode error",
			setup: func(m *testutil.MockRegistry) {
				m.SetResponse("/crates/demo", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"crate":`})
			},
			wantErr: ErrTransport,
			check: func(t *testing.T, err error) {
				var te *TransportError
				if !errors.As(err, &te) {
					t.Fatalf("error type = %T, want *TransportError", err)
				}
				if te.ErrorClass != ErrorClassDecode || te.StatusCode != http.StatusOK {
					t.Errorf("TransportError = (%d, %s), want (200, decode)", te.StatusCode, te.ErrorClass)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)
			c := newTestClient(t, mock)

			_, err := c.GetCrate(context.Background(), "demo")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("GetCrate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetCrate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestGet_RecordsCompletionForResponses(t *testing.T) {
	mock := newMock(t)
	mock.SetResponse("/crates/denied", testutil.MockResponse{StatusCode: http.StatusForbidden})
	mock.SetJSON("/crates/bad", testutil.ErrorEnvelope("nope"))

	slot := ratelimit.NewMemorySlot()
	clock := testutil.NewFakeClock(testStart)
	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Slot = slot
		cfg.Clock = clock
		cfg.RateLimit = time.Second
	})
	ctx := context.Background()

	for i, name := range []string{"missing", "denied", "bad"} {
		clock.Advance(10 * time.Second)
		if _, err := c.GetCrate(ctx, name); err == nil {
			t.Fatalf("GetCrate(%q) expected error", name)
		}
		last, _ := slot.Last(ctx)
		want := testStart.Add(time.Duration(i+1) * 10 * time.Second)
		if !last.Equal(want) {
			t.Errorf("after %q: Last = %v, want %v", name, last, want)
		}
	}

	if sleeps := clock.Sleeps(); len(sleeps) != 0 {
		t.Errorf("Sleeps = %v, want none", sleeps)
	}
}

func TestGet_NetworkFailureDoesNotRecord(t *testing.T) {
	dead := testutil.NewMockRegistry()
	baseURL := dead.URL()
	dead.Close()

	slot := ratelimit.NewMemorySlot()
	clock := testutil.NewFakeClock(testStart)
	logger := zerolog.Nop()
	c, err := New(Config{
		UserAgent: testUserAgent,
		RateLimit: time.Second,
		BaseURL:   baseURL,
		Slot:      slot,
		Clock:     clock,
		Logger:    &logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Summary(context.Background())
	var te *TransportError
	if !errors.As(err, &te) || te.ErrorClass != ErrorClassNetwork {
		t.Fatalf("Summary() error = %v, want network transport error", err)
	}

	if last, _ := slot.Last(context.Background()); !last.IsZero() {
		t.Errorf("Last = %v, want zero after network failure", last)
	}
}

func TestGet_SpacesRequests(t *testing.T) {
	mock := newMock(t)
	mock.SetJSON("/summary", types.Summary{})

	clock := testutil.NewFakeClock(testStart)
	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Clock = clock
		cfg.RateLimit = time.Second
	})

	for range 3 {
		if _, err := c.Summary(context.Background()); err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
	}

	want := []time.Duration{time.Second, time.Second}
	if diff := cmp.Diff(want, clock.Sleeps()); diff != "" {
		t.Errorf("Sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestClone_SharesRateSlot(t *testing.T) {
	mock := newMock(t)
	mock.SetResponse("/summary", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"num_crates":1}`,
		Delay:      2 * time.Millisecond,
	})

	clock := testutil.NewFakeClock(testStart)
	original := newTestClient(t, mock, func(cfg *Config) {
		cfg.Clock = clock
		cfg.RateLimit = time.Second
	})
	clone := original.Clone()

	var wg sync.WaitGroup
	for i := range 6 {
		c := original
		if i%2 == 1 {
			c = clone
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Summary(context.Background()); err != nil {
				t.Errorf("Summary() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if mock.Overlapped() {
		t.Error("requests of a clone overlapped with the original")
	}
	if got := len(clock.Sleeps()); got != 5 {
		t.Errorf("gate waits = %d, want 5", got)
	}
}

func TestCrates_QueryParameters(t *testing.T) {
	mock := newMock(t)
	mock.SetJSON("/crates", types.CratesResponse{Meta: types.Meta{Total: 0}})
	c := newTestClient(t, mock)

	userID := uint64(42)
	query := CratesQuery{
		Sort:     types.SortDownloads,
		PerPage:  25,
		Page:     3,
		UserID:   &userID,
		Category: "parsing",
		Search:   "json",
	}
	if _, err := c.Crates(context.Background(), query); err != nil {
		t.Fatalf("Crates() error = %v", err)
	}
	if _, err := c.Crates(context.Background(), CratesQuery{}); err != nil {
		t.Fatalf("Crates() error = %v", err)
	}

	reqs := mock.Requests()
	want := map[string]string{
		"sort":     "downloads",
		"per_page": "25",
		"page":     "3",
		"user_id":  "42",
		"category": "parsing",
		"q":        "json",
	}
	for key, value := range want {
		if got := reqs[0].Query.Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}

	defaults := reqs[1].Query
	if defaults.Get("page") != "1" || defaults.Get("per_page") != "10" {
		t.Errorf("default query = %v, want page=1 per_page=10", defaults)
	}
	for _, key := range []string{"sort", "q", "user_id", "category"} {
		if defaults.Has(key) {
			t.Errorf("default query should not set %s", key)
		}
	}
}

func TestEndpoints(t *testing.T) {
	mock := newMock(t)
	mock.SetJSON("/crates/demo/owners", types.Owners{Users: []types.User{{Login: "alice"}}})
	mock.SetJSON("/crates/demo/1.0.0/authors", types.AuthorsResponse{Meta: types.AuthorsMeta{Names: []string{"Alice"}}})
	mock.SetJSON("/crates/demo/1.0.0/dependencies", types.Dependencies{Dependencies: []types.Dependency{{CrateID: "serde", Req: "^1"}}})
	mock.SetJSON("/crates/demo/downloads", types.CrateDownloads{VersionDownloads: []types.VersionDownloads{{Date: "2024-01-01", Downloads: 7}}})
	mock.SetJSON("/users/alice", types.UserResponse{User: types.User{ID: 1, Login: "alice"}})
	c := newTestClient(t, mock)
	ctx := context.Background()

	owners, err := c.CrateOwners(ctx, "demo")
	if err != nil || len(owners) != 1 || owners[0].Login != "alice" {
		t.Errorf("CrateOwners() = (%v, %v)", owners, err)
	}

	authors, err := c.CrateAuthors(ctx, "demo", "1.0.0")
	if err != nil {
		t.Fatalf("CrateAuthors() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Alice"}, authors.Names); diff != "" {
		t.Errorf("authors mismatch (-want +got):\n%s", diff)
	}

	deps, err := c.CrateDependencies(ctx, "demo", "1.0.0")
	if err != nil || len(deps) != 1 || deps[0].CrateID != "serde" {
		t.Errorf("CrateDependencies() = (%v, %v)", deps, err)
	}

	downloads, err := c.CrateDownloads(ctx, "demo")
	if err != nil || len(downloads.VersionDownloads) != 1 {
		t.Errorf("CrateDownloads() = (%v, %v)", downloads, err)
	}

	user, err := c.User(ctx, "alice")
	if err != nil || user.ID != 1 {
		t.Errorf("User() = (%v, %v)", user, err)
	}
}
