package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/metrics"
	"github.com/gatherkit/walletgate/ports"
)

// Options configures the authentication service.
type Options struct {
	ChallengeTTL time.Duration
	RatePolicy   ports.RatePolicy
	// StrictDomainCheck rejects a message whose domain does not match the
	// request host. When false, the mismatch is logged and accepted.
	StrictDomainCheck bool
	RedirectURL       string
}

// AuthRequest is one authentication attempt as submitted by a client.
type AuthRequest struct {
	Chain         core.Chain
	Message       string
	Signature     string
	WalletAddress string
	ClientIP      string
	Host          string
}

// AuthResult is returned after a fully successful authentication.
type AuthResult struct {
	AccountID     string
	WalletAddress string // canonical form
	Email         string
	TokenHash     string
	MagicLink     string
	RedirectURL   string
}

// AuthService handles wallet authentication business logic. It sequences
// rate check, message validation, challenge lookup, signature verification,
// account linkage and session bootstrap, in that order.
type AuthService struct {
	chains  map[core.Chain]core.ChainStrategy
	nonces  ports.NonceStore
	limiter ports.RateLimiter
	linker  *accountLinker
	issuer  *sessionIssuer
	events  ports.EventPublisher
	metrics *metrics.AuthMetrics
	log     zerolog.Logger
	opts    Options
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	strategies []core.ChainStrategy,
	nonces ports.NonceStore,
	limiter ports.RateLimiter,
	accounts ports.AccountGateway,
	events ports.EventPublisher,
	m *metrics.AuthMetrics,
	log zerolog.Logger,
	opts Options,
) *AuthService {
	chains := make(map[core.Chain]core.ChainStrategy, len(strategies))
	for _, s := range strategies {
		chains[s.Chain()] = s
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = 5 * time.Minute
	}
	return &AuthService{
		chains:  chains,
		nonces:  nonces,
		limiter: limiter,
		linker:  &accountLinker{accounts: accounts, nonces: nonces, log: log},
		issuer:  &sessionIssuer{accounts: accounts, redirectURL: opts.RedirectURL},
		events:  events,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// Challenge issues a fresh challenge for the wallet, overwriting any prior
// one for the same (chain, address) key.
func (s *AuthService) Challenge(ctx context.Context, chain core.Chain, walletAddress string) (*core.Challenge, error) {
	strategy, ok := s.chains[chain]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q: %w", chain, core.ErrInvalidInput)
	}
	if err := strategy.ValidateAddress(walletAddress); err != nil {
		return nil, err
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	challenge := &core.Challenge{
		Chain:     chain,
		Address:   strategy.Normalize(walletAddress),
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.ChallengeTTL),
	}

	if err := s.nonces.Save(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	s.metrics.RecordChallenge(chain.String())
	return challenge, nil
}

// Authenticate runs the full verification pipeline for one attempt.
func (s *AuthService) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	result, err := s.authenticate(ctx, req)
	s.metrics.RecordAttempt(req.Chain.String(), outcomeFor(err))
	return result, err
}

func (s *AuthService) authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	strategy, ok := s.chains[req.Chain]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q: %w", req.Chain, core.ErrInvalidInput)
	}
	if req.Message == "" || req.Signature == "" || req.WalletAddress == "" {
		return nil, fmt.Errorf("message, signature and walletAddress are required: %w", core.ErrInvalidInput)
	}
	if err := strategy.ValidateAddress(req.WalletAddress); err != nil {
		return nil, err
	}

	normalized := strategy.Normalize(req.WalletAddress)
	canonical := strategy.Canonicalize(req.WalletAddress)

	// Rate limiting comes before any parsing or storage work. A counter
	// store failure rejects the attempt; silently allowing would bypass
	// rate limiting entirely.
	decision, err := s.limiter.Check(ctx, ports.RateKey{
		Address: normalized,
		Chain:   req.Chain,
		IP:      req.ClientIP,
	}, s.opts.RatePolicy)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, &core.RateLimitError{BlockedUntil: decision.BlockedUntil}
	}

	parsed, err := strategy.ParseMessage(req.Message)
	if err != nil {
		return nil, err
	}

	if !domainAccepted(parsed.Domain, req.Host) {
		if s.opts.StrictDomainCheck {
			return nil, fmt.Errorf("message domain %q does not match host %q: %w", parsed.Domain, req.Host, core.ErrMalformedMessage)
		}
		s.log.Warn().
			Str("chain", req.Chain.String()).
			Str("message_domain", parsed.Domain).
			Str("request_host", req.Host).
			Msg("domain mismatch accepted in lenient mode")
	}

	challenge, err := s.nonces.GetActive(ctx, req.Chain, normalized)
	if err != nil {
		if errors.Is(err, core.ErrNoChallenge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	// The nonce comparison is an exact string match and happens before any
	// cryptography runs.
	if challenge.Nonce != parsed.Nonce {
		s.log.Debug().
			Str("chain", req.Chain.String()).
			Str("wallet", normalized).
			Msg("nonce mismatch")
		return nil, core.ErrChallengeConsumed
	}
	if time.Now().After(challenge.ExpiresAt) {
		return nil, core.ErrChallengeExpired
	}

	if err := strategy.VerifySignature(req.Message, req.Signature, canonical); err != nil {
		return nil, err
	}

	// Compare-and-clear consume. Losing this race after a valid signature
	// is a hard rejection: two requests racing on the same nonce must not
	// both produce sessions.
	if err := s.nonces.Consume(ctx, req.Chain, normalized, challenge.Nonce); err != nil {
		if errors.Is(err, core.ErrChallengeConsumed) {
			s.log.Warn().
				Str("chain", req.Chain.String()).
				Str("wallet", normalized).
				Msg("challenge consumed concurrently, rejecting verified request")
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	identity := core.Identity{
		Chain:            req.Chain,
		Address:          normalized,
		CanonicalAddress: canonical,
		AccountID:        challenge.LinkedAccountID,
	}

	account, err := s.linker.linkOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	link, err := s.issuer.issue(ctx, account.ID)
	if err != nil {
		// The wallet was cryptographically proven; this is infrastructure
		// failure, not an authentication rejection.
		s.log.Error().Err(err).
			Str("chain", req.Chain.String()).
			Str("wallet", normalized).
			Str("account_id", account.ID).
			Msg("session issuance failed after successful verification")
		return nil, err
	}

	if s.events != nil {
		event := &core.LoginEvent{
			AccountID:     account.ID,
			Chain:         req.Chain,
			WalletAddress: normalized,
			LoggedInAt:    time.Now(),
		}
		if err := s.events.PublishLogin(ctx, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish login event")
		}
	}

	return &AuthResult{
		AccountID:     account.ID,
		WalletAddress: canonical,
		Email:         account.Email,
		TokenHash:     link.TokenHash,
		MagicLink:     link.MagicLink,
		RedirectURL:   link.RedirectURL,
	}, nil
}

// domainAccepted implements the domain comparison policy: exact match,
// either side being localhost, or either side a suffix of the other.
func domainAccepted(messageDomain, host string) bool {
	md := hostOnly(messageDomain)
	h := hostOnly(host)
	if md == "" || h == "" {
		return true
	}
	if md == h || md == "localhost" || h == "localhost" {
		return true
	}
	return strings.HasSuffix(md, h) || strings.HasSuffix(h, md)
}

func hostOnly(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrMalformedMessage):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, core.ErrNoChallenge), errors.Is(err, core.ErrChallengeConsumed), errors.Is(err, core.ErrChallengeExpired):
		return metrics.OutcomeNoChallenge
	case errors.Is(err, core.ErrInvalidSignature):
		return metrics.OutcomeBadSignature
	case errors.Is(err, core.ErrAccountOperation), errors.Is(err, core.ErrSessionIssuance):
		return metrics.OutcomeAccountError
	default:
		var rateErr *core.RateLimitError
		if errors.As(err, &rateErr) {
			return metrics.OutcomeRateLimited
		}
		return metrics.OutcomeInternalError
	}
}
