package aether

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// Reason says why a call failed.
type Reason string

const (
	// ReasonExhausted: every attempt failed with a retryable error.
	ReasonExhausted Reason = "exhausted"
	// ReasonStatus: the relay answered with a status that is never retried.
	ReasonStatus Reason = "status"
	// ReasonNetwork: the call could not be attempted or was abandoned.
	ReasonNetwork Reason = "network"
)

// CallError is returned by Caller.Call for every failure except an unknown
// endpoint.
type CallError struct {
	Reason   Reason
	Endpoint Endpoint
	// Status is the HTTP status for ReasonStatus, zero otherwise.
	Status int
	// Message is the relay's "error" field, when it sent one.
	Message  string
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	switch e.Reason {
	case ReasonStatus:
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	case ReasonExhausted:
		return fmt.Sprintf("%s: failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNonRetryableStatus) match status failures.
func (e *CallError) Is(target error) bool {
	return target == moderr.ErrNonRetryableStatus && e.Reason == ReasonStatus
}

// Caller invokes relay endpoints, retrying 503s, transport failures and
// unreadable success bodies with exponential backoff. A Caller keeps no
// per-call state and is safe for concurrent use.
type Caller struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryConfig
	observe    func(Endpoint, Attempt)
}

// Option allows functional configuration.
type Option func(*Caller)

// WithLogger sets a custom slog logger.
func WithLogger(l *slog.Logger) Option { return func(c *Caller) { c.logger = l } }

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Caller) { c.httpClient = hc } }

// WithRetryConfig replaces DefaultRetryConfig.
func WithRetryConfig(cfg RetryConfig) Option { return func(c *Caller) { c.retry = cfg } }

// WithAttemptObserver receives every attempt of every call.
func WithAttemptObserver(fn func(Endpoint, Attempt)) Option {
	return func(c *Caller) { c.observe = fn }
}

// NewCaller builds a Caller for the relay at baseURL, e.g. "http://localhost:3000".
func NewCaller(baseURL string, opts ...Option) *Caller {
	c := &Caller{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     slog.Default(),
		retry:      DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call POSTs payload as JSON to ep and returns the raw JSON body of the first
// successful response.
func (c *Caller) Call(ctx context.Context, ep Endpoint, payload any) (json.RawMessage, error) {
	if !ep.Valid() {
		return nil, fmt.Errorf("%w: %q", moderr.ErrUnknownEndpoint, string(ep))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &CallError{Reason: ReasonNetwork, Endpoint: ep, Err: fmt.Errorf("encode payload: %w", err)}
	}
	url := c.baseURL + "/" + string(ep)

	attempts := 0
	r := retry.New(c.retry,
		retry.WithPredicate(retry.RetryOnStatus(http.StatusServiceUnavailable)),
		retry.WithLogger(c.logger),
		retry.WithLabel("caller."+string(ep)),
		retry.WithObserver(func(a retry.Attempt) {
			attempts++
			if c.observe != nil {
				c.observe(ep, a)
			}
		}),
	)

	var out json.RawMessage
	err = r.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return retry.NewHTTPStatusError(resp.StatusCode, string(b), "relay")
		}
		if !json.Valid(b) {
			return errInvalidBody
		}
		out = b
		return nil
	})
	if err == nil {
		return out, nil
	}
	return nil, c.classify(ep, attempts, err)
}

var errInvalidBody = errors.New("response body is not valid JSON")

func (c *Caller) classify(ep Endpoint, attempts int, err error) error {
	ce := &CallError{Endpoint: ep, Attempts: attempts, Err: err}
	var he *retry.HTTPStatusError
	switch {
	case errors.Is(err, moderr.ErrRetriesExhausted):
		ce.Reason = ReasonExhausted
	case errors.As(err, &he):
		ce.Reason = ReasonStatus
		ce.Status = he.Status
		ce.Message = gjson.Get(he.Body, "error").String()
	default:
		ce.Reason = ReasonNetwork
	}
	c.logger.Error("call failed",
		slog.String("endpoint", string(ep)),
		slog.String("reason", string(ce.Reason)),
		slog.Int("status", ce.Status),
		slog.Int("attempts", attempts),
	)
	return ce
}
