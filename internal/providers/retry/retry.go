package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	moderr "github.com/lizzyg/aether/errors"
)

// Config holds retry configuration parameters
type Config struct {
	MaxAttempts int           `json:"max_attempts" koanf:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" koanf:"base_delay"`
	// MaxDelay caps a single backoff delay. Zero leaves it uncapped.
	MaxDelay time.Duration `json:"max_delay" koanf:"max_delay"`
	// AttemptTimeout bounds each attempt. Zero leaves attempts unbounded.
	AttemptTimeout time.Duration `json:"attempt_timeout" koanf:"attempt_timeout"`
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   1000 * time.Millisecond,
	}
}

// Delay is the backoff slept after failed attempt n (0-indexed): base * 2^n.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// NewBackOff returns the schedule Delay(BaseDelay, 0), Delay(BaseDelay, 1), ...
// without jitter, capped at MaxDelay when one is set.
func NewBackOff(cfg Config) backoff.BackOff {
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Outcome classifies a single attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
)

// Attempt is recorded once per try and handed to the observer, if any.
type Attempt struct {
	Seq     int
	At      time.Time
	Outcome Outcome
	Err     error
}

// Retrier runs an operation with bounded, strictly sequential attempts.
// A Retrier holds no per-call state and is safe for concurrent use.
type Retrier struct {
	cfg       Config
	retryable func(error) bool
	observe   func(Attempt)
	logger    *slog.Logger
	label     string
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithPredicate sets the function deciding whether a failed attempt is retried.
func WithPredicate(fn func(error) bool) Option { return func(r *Retrier) { r.retryable = fn } }

// WithObserver registers a callback invoked after every attempt.
func WithObserver(fn func(Attempt)) Option { return func(r *Retrier) { r.observe = fn } }

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option { return func(r *Retrier) { r.logger = l } }

// WithLabel names the operation in log lines.
func WithLabel(label string) Option { return func(r *Retrier) { r.label = label } }

// New builds a Retrier. The default predicate is IsTransient.
func New(cfg Config, opts ...Option) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	r := &Retrier{
		cfg:       cfg,
		retryable: IsTransient,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the configuration the Retrier was built with.
func (r *Retrier) Config() Config { return r.cfg }

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Spending the budget yields an error matching
// ErrRetriesExhausted that also wraps the last attempt error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if r.cfg.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(NewBackOff(r.cfg), uint64(r.cfg.MaxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	seq := 0
	lastRetryable := false
	op := func() error {
		err := r.attempt(ctx, fn)
		a := Attempt{Seq: seq, At: time.Now(), Err: err}
		seq++
		switch {
		case err == nil:
			a.Outcome = OutcomeSuccess
		case ctx.Err() == nil && !isPermanent(err) && r.retryable(err):
			a.Outcome = OutcomeRetryable
		default:
			a.Outcome = OutcomeFatal
		}
		if r.observe != nil {
			r.observe(a)
		}
		lastRetryable = a.Outcome == OutcomeRetryable
		if a.Outcome == OutcomeFatal {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		if r.logger == nil {
			return
		}
		r.logger.Warn("attempt failed, retrying",
			slog.String("op", r.label),
			slog.Int("attempt", seq-1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	if lastRetryable {
		return fmt.Errorf("%w after %d attempts: %w", moderr.ErrRetriesExhausted, seq, err)
	}
	return err
}

func (r *Retrier) attempt(ctx context.Context, fn func(context.Context) error) error {
	if r.cfg.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()
	err := fn(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", moderr.ErrAttemptTimeout, r.cfg.AttemptTimeout, err)
	}
	return err
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as never worth retrying, whatever the predicate says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// HTTPStatusError wraps HTTP status codes to enable reliable retry decisions.
type HTTPStatusError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
	Source string `json:"source"` // e.g., "gemini", "openai", "relay"
}

// NewHTTPStatusError creates a new HTTP status error
func NewHTTPStatusError(status int, body, source string) *HTTPStatusError {
	return &HTTPStatusError{
		Status: status,
		Body:   body,
		Source: source,
	}
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Source, e.Status, e.Body)
}

// IsTransient reports whether an error is worth retrying: 429, 5xx, network
// timeouts and attempt deadlines.
func IsTransient(err error) bool {
	if err == nil || isPermanent(err) {
		return false
	}
	if errors.Is(err, moderr.ErrAttemptTimeout) {
		return true
	}
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.Status == 429 || he.Status >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// RetryOnStatus returns a predicate that retries the listed HTTP statuses and
// any failure that produced no status at all (transport errors, attempt
// deadlines, unreadable bodies). Every other status is final.
func RetryOnStatus(codes ...int) func(error) bool {
	return func(err error) bool {
		if err == nil || isPermanent(err) {
			return false
		}
		var he *HTTPStatusError
		if errors.As(err, &he) {
			return slices.Contains(codes, he.Status)
		}
		return !errors.Is(err, context.Canceled)
	}
}

func isPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}
