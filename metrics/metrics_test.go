package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAttempt(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAttempt("ethereum", OutcomeSuccess)
	m.RecordAttempt("ethereum", OutcomeSuccess)
	m.RecordAttempt("solana", OutcomeBadSignature)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("ethereum", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("solana", OutcomeBadSignature)))
}

func TestRecordChallenge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordChallenge("ethereum")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.challenges.WithLabelValues("ethereum")))
}

// A nil AuthMetrics is valid and records nothing.
func TestNilMetricsAreNoOps(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() {
		m.RecordAttempt("ethereum", OutcomeSuccess)
		m.RecordChallenge("ethereum")
	})
}
