package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for authentication attempts.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeRateLimited   = "rate_limited"
	OutcomeNoChallenge   = "no_challenge"
	OutcomeBadSignature  = "bad_signature"
	OutcomeAccountError  = "account_error"
	OutcomeInternalError = "internal_error"
)

// AuthMetrics holds prometheus collectors for the authentication flow.
type AuthMetrics struct {
	attempts   *prometheus.CounterVec
	challenges *prometheus.CounterVec
}

// New creates the collectors and registers them with the given registerer.
func New(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_auth_attempts_total",
				Help: "Authentication attempts by chain and outcome",
			},
			[]string{"chain", "outcome"},
		),
		challenges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_challenges_issued_total",
				Help: "Challenges issued by chain",
			},
			[]string{"chain"},
		),
	}
	reg.MustRegister(m.attempts, m.challenges)
	return m
}

// RecordAttempt increments the attempt counter. Nil receivers are no-ops so
// metrics stay optional in tests.
func (m *AuthMetrics) RecordAttempt(chain, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(chain, outcome).Inc()
}

// RecordChallenge increments the issued-challenge counter.
func (m *AuthMetrics) RecordChallenge(chain string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(chain).Inc()
}
