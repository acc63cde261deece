package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	moderr "github.com/lizzyg/aether/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type attemptLog struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (l *attemptLog) record(a Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

func (l *attemptLog) outcomes() []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Outcome, len(l.attempts))
	for i, a := range l.attempts {
		out[i] = a.Outcome
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, time.Second, config.BaseDelay)
	assert.Zero(t, config.MaxDelay, "single delays are uncapped by default")
	assert.Zero(t, config.AttemptTimeout)
}

func TestDelay(t *testing.T) {
	base := 1000 * time.Millisecond
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for k, w := range want {
		assert.Equal(t, w, Delay(base, k), "attempt %d", k)
	}
	assert.Equal(t, base, Delay(base, -3))
}

func TestNewBackOffFollowsDelay(t *testing.T) {
	cfg := Config{BaseDelay: 1000 * time.Millisecond}
	b := NewBackOff(cfg)
	for k := 0; k < 8; k++ {
		assert.Equal(t, Delay(cfg.BaseDelay, k), b.NextBackOff(), "attempt %d", k)
	}

	capped := NewBackOff(Config{BaseDelay: time.Second, MaxDelay: 3 * time.Second})
	got := []time.Duration{capped.NextBackOff(), capped.NextBackOff(), capped.NextBackOff()}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, got)
}

func TestDoBehavior(t *testing.T) {
	t.Run("success_on_first_attempt", func(t *testing.T) {
		log := &attemptLog{}
		r := New(Config{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond}, WithObserver(log.record), WithLogger(quietLogger()))
		callCount := 0
		start := time.Now()

		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, callCount)
		assert.Less(t, time.Since(start), 50*time.Millisecond, "no backoff before a first success")
		assert.Equal(t, []Outcome{OutcomeSuccess}, log.outcomes())
	})

	t.Run("retry_with_transient_errors", func(t *testing.T) {
		base := 10 * time.Millisecond
		log := &attemptLog{}
		r := New(Config{MaxAttempts: 5, BaseDelay: base}, WithObserver(log.record), WithLogger(quietLogger()))
		callCount := 0
		start := time.Now()

		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			if callCount <= 3 {
				return NewHTTPStatusError(429, "rate limited", "test")
			}
			return nil
		})
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 4, callCount, "3 failures then a success is 4 attempts")
		// 10ms + 20ms + 40ms
		assert.GreaterOrEqual(t, elapsed, Delay(base, 0)+Delay(base, 1)+Delay(base, 2))
		assert.Equal(t, []Outcome{OutcomeRetryable, OutcomeRetryable, OutcomeRetryable, OutcomeSuccess}, log.outcomes())
	})

	t.Run("no_retry_on_non_transient_error", func(t *testing.T) {
		r := New(Config{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond}, WithLogger(quietLogger()))
		callCount := 0
		start := time.Now()

		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			return NewHTTPStatusError(400, "bad request", "test")
		})

		require.Error(t, err)
		assert.Equal(t, 1, callCount)
		assert.NotErrorIs(t, err, moderr.ErrRetriesExhausted)
		var he *HTTPStatusError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, 400, he.Status)
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("eventual_failure_after_max_attempts", func(t *testing.T) {
		log := &attemptLog{}
		r := New(Config{MaxAttempts: 5, BaseDelay: time.Millisecond}, WithObserver(log.record), WithLogger(quietLogger()))
		callCount := 0

		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			return NewHTTPStatusError(503, "service unavailable", "test")
		})

		require.Error(t, err)
		assert.Equal(t, 5, callCount)
		assert.ErrorIs(t, err, moderr.ErrRetriesExhausted)
		var he *HTTPStatusError
		require.ErrorAs(t, err, &he, "last attempt error stays reachable")
		assert.Equal(t, 503, he.Status)
		assert.Len(t, log.outcomes(), 5)
	})

	t.Run("single_attempt_budget", func(t *testing.T) {
		r := New(Config{MaxAttempts: 1, BaseDelay: time.Hour}, WithLogger(quietLogger()))
		callCount := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			return NewHTTPStatusError(429, "rate limited", "test")
		})
		assert.Equal(t, 1, callCount)
		assert.ErrorIs(t, err, moderr.ErrRetriesExhausted)
	})

	t.Run("permanent_overrides_predicate", func(t *testing.T) {
		r := New(Config{MaxAttempts: 5, BaseDelay: time.Millisecond},
			WithPredicate(func(error) bool { return true }), WithLogger(quietLogger()))
		callCount := 0
		cause := errors.New("bad url")
		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			return Permanent(cause)
		})
		assert.Equal(t, 1, callCount)
		assert.Same(t, cause, err)
	})

	t.Run("attempt_timeout_is_retried", func(t *testing.T) {
		log := &attemptLog{}
		r := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, AttemptTimeout: 20 * time.Millisecond},
			WithPredicate(RetryOnStatus(429)), WithObserver(log.record), WithLogger(quietLogger()))
		callCount := 0

		err := r.Do(context.Background(), func(ctx context.Context) error {
			callCount++
			if callCount == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, callCount)
		require.Len(t, log.attempts, 2)
		assert.ErrorIs(t, log.attempts[0].Err, moderr.ErrAttemptTimeout)
		assert.Equal(t, OutcomeRetryable, log.attempts[0].Outcome)
	})

	t.Run("context_cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := New(DefaultConfig(), WithLogger(quietLogger()))

		err := r.Do(ctx, func(ctx context.Context) error {
			return NewHTTPStatusError(503, "service unavailable", "test")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, moderr.ErrRetriesExhausted)
	})
}

func TestDoIsolatesConcurrentCalls(t *testing.T) {
	r := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, WithLogger(quietLogger()))
	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Do(context.Background(), func(ctx context.Context) error {
				counts[i]++
				if counts[i] < 2 {
					return NewHTTPStatusError(429, "rate limited", "test")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	for i, c := range counts {
		assert.Equal(t, 2, c, "call %d", i)
	}
}

func TestHTTPStatusError(t *testing.T) {
	err := NewHTTPStatusError(429, "rate limited", "gemini")

	assert.Equal(t, 429, err.Status)
	assert.Equal(t, "rate limited", err.Body)
	assert.Equal(t, "gemini", err.Source)
	assert.Equal(t, "gemini http 429: rate limited", err.Error())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"429 rate limit", NewHTTPStatusError(429, "rate limited", "test"), true},
		{"500 server error", NewHTTPStatusError(500, "internal server error", "test"), true},
		{"503 service unavailable", NewHTTPStatusError(503, "service unavailable", "test"), true},
		{"400 bad request", NewHTTPStatusError(400, "bad request", "test"), false},
		{"404 not found", NewHTTPStatusError(404, "not found", "test"), false},
		{"network timeout", &net.DNSError{IsTimeout: true}, true},
		{"non-timeout network error", &net.DNSError{IsTimeout: false}, false},
		{"attempt timeout", moderr.ErrAttemptTimeout, true},
		{"permanent 503", Permanent(NewHTTPStatusError(503, "", "test")), false},
		{"generic error", errors.New("generic error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestRetryOnStatus(t *testing.T) {
	only429 := RetryOnStatus(429)
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"listed status", NewHTTPStatusError(429, "", "gemini"), true},
		{"unlisted 5xx", NewHTTPStatusError(503, "", "gemini"), false},
		{"unlisted 4xx", NewHTTPStatusError(404, "", "gemini"), false},
		{"connection refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"dns failure", &net.DNSError{Err: "no such host"}, true},
		{"attempt timeout", moderr.ErrAttemptTimeout, true},
		{"caller cancelled", context.Canceled, false},
		{"permanent", Permanent(errors.New("bad request build")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, only429(tt.err))
		})
	}
}
