package core

import "time"

// Challenge represents an authentication challenge: the single active nonce
// for a (chain, wallet address) pair. A consumed challenge has an empty
// nonce and a nil expiry.
type Challenge struct {
	Chain           Chain     // Chain the wallet belongs to
	Address         string    // Normalized wallet address
	Nonce           string    // Random nonce to be signed, single use
	IssuedAt        time.Time // When the challenge was created
	ExpiresAt       time.Time // When the challenge expires
	LinkedAccountID *string   // Account linked by a prior successful auth
}

// Consumed reports whether the challenge nonce has already been cleared.
func (c *Challenge) Consumed() bool {
	return c.Nonce == ""
}

// ParsedMessage holds the fields extracted from a signed authentication
// message. Address and Domain may be empty for chains whose message format
// does not carry them.
type ParsedMessage struct {
	Domain  string
	Address string
	Nonce   string
}

// Identity is the ephemeral result of a successful verification. It lives
// for the duration of one request and is never persisted.
type Identity struct {
	Chain            Chain
	Address          string // normalized
	CanonicalAddress string // checksummed for Ethereum
	AccountID        *string
}

// Identifier derives the synthetic unique identifier binding a wallet to an
// account inside the external identity system.
func (id Identity) Identifier() string {
	return id.Address + "@wallet." + string(id.Chain)
}

// Account is the external identity system's view of a user. This subsystem
// only reads it and asks for creation.
type Account struct {
	ID    string
	Email string
}

// NewAccount carries the fields needed to create an account for a wallet.
type NewAccount struct {
	Email            string
	Chain            Chain
	Address          string
	CanonicalAddress string
}

// LoginLink is the one-time session bootstrap artifact issued by the
// external account system after a wallet has been proven.
type LoginLink struct {
	Token       string
	TokenHash   string
	MagicLink   string
	RedirectURL string
}

// LoginEvent is published after a successful wallet authentication.
type LoginEvent struct {
	AccountID     string    `json:"account_id"`
	Chain         Chain     `json:"chain"`
	WalletAddress string    `json:"wallet_address"`
	LoggedInAt    time.Time `json:"logged_in_at"`
}
