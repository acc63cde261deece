package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/lizzyg/aether/internal/providers/retry"
)

func TestObserveRequest(t *testing.T) {
	c := RequestsTotal.WithLabelValues("/metrics-test", "400")
	before := testutil.ToFloat64(c)

	ObserveRequest("/metrics-test", 400, 120*time.Millisecond)
	ObserveRequest("/metrics-test", 400, 80*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestObserveAttempt(t *testing.T) {
	retryable := UpstreamAttempts.WithLabelValues("metrics-test", "retryable")
	success := UpstreamAttempts.WithLabelValues("metrics-test", "success")
	r0, s0 := testutil.ToFloat64(retryable), testutil.ToFloat64(success)

	ObserveAttempt("metrics-test", retry.Attempt{Seq: 0, Outcome: retry.OutcomeRetryable})
	ObserveAttempt("metrics-test", retry.Attempt{Seq: 1, Outcome: retry.OutcomeRetryable})
	ObserveAttempt("metrics-test", retry.Attempt{Seq: 2, Outcome: retry.OutcomeSuccess})

	assert.Equal(t, r0+2, testutil.ToFloat64(retryable))
	assert.Equal(t, s0+1, testutil.ToFloat64(success))
}
