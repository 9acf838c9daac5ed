package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedMessage = errors.New("malformed message")
	ErrNoChallenge      = errors.New("no active challenge")
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeConsumed covers both a nonce mismatch and a
	// compare-and-clear consume that lost a race. Responses must not
	// distinguish it from ErrNoChallenge; logs may.
	ErrChallengeConsumed = errors.New("challenge nonce mismatch or already consumed")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountOperation  = errors.New("account operation failed")
	ErrSessionIssuance   = errors.New("session issuance failed")
	// ErrStoreUnavailable marks counter/nonce store failures. Callers fail
	// closed: the request is rejected as retriable, never allowed through.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RateLimitError is returned when an attempt is rejected by the rate
// limiter. BlockedUntil tells the caller when attempts may resume.
type RateLimitError struct {
	BlockedUntil time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.BlockedUntil.Format(time.RFC3339))
}
