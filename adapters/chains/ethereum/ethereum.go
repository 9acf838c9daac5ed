package ethereum

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spruceid/siwe-go"

	"github.com/gatherkit/walletgate/core"
)

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Strategy implements core.ChainStrategy for Ethereum wallets using
// EIP-4361 (SIWE) messages signed with the EIP-191 personal-sign scheme.
type Strategy struct{}

func New() *Strategy {
	return &Strategy{}
}

func (s *Strategy) Chain() core.Chain {
	return core.ChainEthereum
}

func (s *Strategy) ValidateAddress(raw string) error {
	if !addressRe.MatchString(raw) {
		return fmt.Errorf("invalid Ethereum address format: %w", core.ErrInvalidInput)
	}
	return nil
}

func (s *Strategy) Normalize(raw string) string {
	return strings.ToLower(raw)
}

// Canonicalize returns the EIP-55 checksummed form of the address.
func (s *Strategy) Canonicalize(raw string) string {
	return common.HexToAddress(raw).Hex()
}

// ParseMessage parses an EIP-4361 structured message. Domain, address and
// nonce must all be present and non-empty.
func (s *Strategy) ParseMessage(raw string) (*core.ParsedMessage, error) {
	msg, err := siwe.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SIWE message: %w", core.ErrMalformedMessage)
	}

	parsed := &core.ParsedMessage{
		Domain:  msg.GetDomain(),
		Address: msg.GetAddress().Hex(),
		Nonce:   msg.GetNonce(),
	}
	if parsed.Domain == "" || parsed.Address == "" || parsed.Nonce == "" {
		return nil, fmt.Errorf("SIWE message missing domain, address or nonce: %w", core.ErrMalformedMessage)
	}
	return parsed, nil
}

// VerifySignature checks the EIP-191 signature over the SIWE message. The
// structured siwe verifier is tried first; when it errors, the raw
// personal-sign recovery path decides. Structured verifiers can reject
// edge-case message formats with an error instead of a clean invalid
// result, and a wallet-produced signature must still be accepted then.
func (s *Strategy) VerifySignature(message, signature, canonicalAddress string) error {
	expected := common.HexToAddress(canonicalAddress)

	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return fmt.Errorf("failed to parse SIWE message: %w", core.ErrMalformedMessage)
	}

	// The address embedded in the message must be the claimed wallet.
	// Mismatch rejects before any cryptography runs.
	if msg.GetAddress() != expected {
		return fmt.Errorf("message address %s does not match wallet: %w", msg.GetAddress().Hex(), core.ErrInvalidSignature)
	}

	if pub, verr := msg.VerifyEIP191(signature); verr == nil {
		if crypto.PubkeyToAddress(*pub) == expected {
			return nil
		}
		return fmt.Errorf("recovered address mismatch: %w", core.ErrInvalidSignature)
	}

	recovered, err := recoverPersonalSign([]byte(message), signature)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), core.ErrInvalidSignature)
	}
	if recovered != expected {
		return fmt.Errorf("recovered address mismatch: %w", core.ErrInvalidSignature)
	}
	return nil
}

// recoverPersonalSign recovers the signer of an EIP-191 personal-sign
// signature: keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func recoverPersonalSign(msg []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature hex")
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// Wallets emit V as 27/28, ecrecover expects 0/1.
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}

	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	hash := crypto.Keccak256([]byte(prefix), msg)

	pub, err := crypto.SigToPub(hash, sigCopy)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}
