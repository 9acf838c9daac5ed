package core

import "fmt"

// Chain identifies the blockchain a wallet belongs to.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
)

// ParseChain converts a string into a supported Chain.
func ParseChain(s string) (Chain, error) {
	switch Chain(s) {
	case ChainEthereum:
		return ChainEthereum, nil
	case ChainSolana:
		return ChainSolana, nil
	}
	return "", fmt.Errorf("unsupported chain %q: %w", s, ErrInvalidInput)
}

func (c Chain) String() string {
	return string(c)
}

// ChainStrategy bundles the chain-specific behavior of the authentication
// flow: address validation and normalization, message parsing, and
// signature verification. One implementation exists per supported chain.
type ChainStrategy interface {
	// Chain returns the chain this strategy serves.
	Chain() Chain

	// ValidateAddress checks the raw wallet address format.
	ValidateAddress(raw string) error

	// Normalize converts an address to its storage form
	// (lowercase hex for Ethereum, base58 as-is for Solana).
	Normalize(raw string) string

	// Canonicalize converts an address to its canonical form
	// (EIP-55 checksummed hex for Ethereum, base58 as-is for Solana).
	Canonicalize(raw string) string

	// ParseMessage extracts domain, address and nonce from a signed
	// authentication message.
	ParseMessage(raw string) (*ParsedMessage, error)

	// VerifySignature checks the signature over message against the
	// canonical wallet address.
	VerifySignature(message, signature, canonicalAddress string) error
}
