package solana

import (
	"crypto/ed25519"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/gatherkit/walletgate/core"
)

const (
	minAddressLen = 32
	maxAddressLen = 44
)

// firstLineRe matches the SIWS preamble "<domain> wants you to sign in ...".
var firstLineRe = regexp.MustCompile(`^(\S+) wants you to sign in`)

// Strategy implements core.ChainStrategy for Solana wallets. The message is
// a free-form text block; the nonce is carried on a labeled line and the
// signature is ed25519 over the UTF-8 message bytes.
type Strategy struct{}

func New() *Strategy {
	return &Strategy{}
}

func (s *Strategy) Chain() core.Chain {
	return core.ChainSolana
}

func (s *Strategy) ValidateAddress(raw string) error {
	if len(raw) < minAddressLen || len(raw) > maxAddressLen {
		return fmt.Errorf("invalid Solana address format: %w", core.ErrInvalidInput)
	}
	if _, err := decodePublicKey(raw); err != nil {
		return fmt.Errorf("invalid Solana address format: %w", core.ErrInvalidInput)
	}
	return nil
}

// Normalize keeps the base58 representation as-is; base58 is case
// sensitive and has a single canonical spelling per key.
func (s *Strategy) Normalize(raw string) string {
	return raw
}

func (s *Strategy) Canonicalize(raw string) string {
	return raw
}

// ParseMessage extracts the nonce from a "nonce: <value>" line. The label
// is case sensitive, the value is trimmed. The domain, when present, comes
// from the sign-in preamble on the first line.
func (s *Strategy) ParseMessage(raw string) (*core.ParsedMessage, error) {
	parsed := &core.ParsedMessage{}

	lines := strings.Split(raw, "\n")
	if len(lines) > 0 {
		if m := firstLineRe.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil {
			parsed.Domain = m[1]
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(trimmed, "nonce: "); ok {
			parsed.Nonce = strings.TrimSpace(value)
			break
		}
	}
	if parsed.Nonce == "" {
		return nil, fmt.Errorf("nonce not found in message: %w", core.ErrMalformedMessage)
	}
	return parsed, nil
}

// VerifySignature checks the base58-encoded ed25519 signature over the
// UTF-8 message bytes against the wallet's public key. The base58 wallet
// address decodes directly to the key.
func (s *Strategy) VerifySignature(message, signature, canonicalAddress string) error {
	pub, err := decodePublicKey(canonicalAddress)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), core.ErrInvalidSignature)
	}

	sig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("failed to decode base58 signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d: %w", ed25519.SignatureSize, len(sig), core.ErrInvalidSignature)
	}

	if !ed25519.Verify(pub, []byte(message), sig) {
		return core.ErrInvalidSignature
	}
	return nil
}

func decodePublicKey(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 address")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}
