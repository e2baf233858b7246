// Package client provides the crates.io API client: a rate-gated transport,
// typed endpoint operations, a lazy crate listing and composite lookups.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/cratesio-client/pkg/ratelimit"
	"github.com/Sternrassler/cratesio-client/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the crates.io API origin.
const DefaultBaseURL = "https://crates.io/api/v1/"

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratesio_requests_total",
		Help: "Total crates.io requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cratesio_request_duration_seconds",
		Help:    "crates.io request duration in seconds by endpoint, including rate gate waits",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratesio_errors_total",
		Help: "Total crates.io errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents unclassified 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents failures before a response was received.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents 2xx bodies that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// Config holds the client configuration.
type Config struct {
	// User-Agent header (REQUIRED by the crates.io crawler policy)
	// Format: "my_bot (help@my_bot.com)"
	UserAgent string

	// RateLimit is the minimum interval between request completions.
	// Only one request is in flight at a time, even when it is zero.
	RateLimit time.Duration

	// BaseURL of the API (default: DefaultBaseURL).
	BaseURL string

	// HTTPClient executes requests (default: a client without timeout).
	HTTPClient *http.Client

	// Redis, when set, stores the rate slot so that every process using the
	// same Redis and key prefix shares one gate.
	Redis          *redis.Client
	RedisKeyPrefix string

	// Slot overrides the rate slot backend.
	Slot ratelimit.Slot

	// Clock overrides the gate clock (tests).
	Clock ratelimit.Clock

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the configuration recommended by the crawler policy:
// at most one request per second.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		RateLimit: 1 * time.Second,
		BaseURL:   DefaultBaseURL,
	}
}

// Client is the crates.io client. Clones share the rate slot of the client
// they were cloned from.
type Client struct {
	httpClient *http.Client
	gate       *ratelimit.Gate
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if strings.ContainsAny(cfg.UserAgent, "\r\n\x00") {
		return nil, fmt.Errorf("user-agent contains invalid characters")
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %s)", cfg.RateLimit)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	logger := log.With().Str("component", "cratesio-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	slot := cfg.Slot
	switch {
	case slot != nil:
	case cfg.Redis != nil:
		slot = ratelimit.NewRedisSlot(cfg.Redis, ratelimit.RedisSlotConfig{
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger.With().Str("component", "rate-slot").Logger())
	default:
		slot = ratelimit.NewMemorySlot()
	}

	gate := ratelimit.NewGate(slot, cfg.RateLimit, cfg.Clock,
		logger.With().Str("component", "rate-gate").Logger())

	return &Client{
		httpClient: httpClient,
		gate:       gate,
		baseURL:    baseURL,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Clone returns a copy of the client that shares its rate slot. Requests of
// the clone and the original never overlap.
func (c *Client) Clone() *Client {
	clone := *c
	return &clone
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// endpointURL joins path segments onto the base URL.
func (c *Client) endpointURL(segments ...string) *url.URL {
	return c.baseURL.JoinPath(segments...)
}

// get performs a rate-gated GET of u and decodes the enveloped body into v.
// endpoint labels logs and metrics.
func (c *Client) get(ctx context.Context, endpoint string, u *url.URL, v any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	return c.gate.Run(ctx, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return false, &TransportError{ErrorClass: ErrorClassNetwork, Message: "create request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("url", u.String()).
			Msg("Executing crates.io request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return false, &TransportError{ErrorClass: ErrorClassNetwork, Message: "send request", Err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return true, c.handleResponse(resp, u, endpoint, v)
	})
}

// handleResponse maps a response onto the error taxonomy or decodes it.
func (c *Client) handleResponse(resp *http.Response, u *url.URL, endpoint string, v any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		c.logger.Debug().Str("endpoint", endpoint).Msg("Resource not found")
		return &NotFoundError{URL: u.String()}

	case resp.StatusCode == http.StatusForbidden:
		reason, _ := io.ReadAll(resp.Body)
		c.logger.Warn().Str("endpoint", endpoint).Msg("Permission denied")
		return &PermissionDeniedError{Reason: string(reason)}

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("crates.io request error")
		return &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "read response body",
			Err:        err,
		}
	}

	if err := decodeEnvelope(body, v); err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			transportErr.StatusCode = resp.StatusCode
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to decode response body")
		} else {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("crates.io returned an error envelope")
		}
		return err
	}
	return nil
}

// decodeEnvelope unwraps a response envelope: a body with a non-empty
// "errors" array is a domain error, anything else is the success payload.
func decodeEnvelope(body []byte, v any) error {
	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		var apiErrs types.APIErrors
		if err := json.Unmarshal(body, &apiErrs); err != nil {
			return &TransportError{ErrorClass: ErrorClassDecode, Message: "decode error envelope", Err: err}
		}
		return &APIError{Errors: apiErrs.Errors}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &TransportError{ErrorClass: ErrorClassDecode, Message: "decode response body", Err: err}
	}
	return nil
}

// classifyStatus categorizes a non-2xx status without a dedicated error.
func classifyStatus(code int) ErrorClass {
	if code >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}
