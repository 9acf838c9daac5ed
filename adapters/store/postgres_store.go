package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallet_challenges (
	chain             TEXT        NOT NULL,
	wallet_address    TEXT        NOT NULL,
	nonce             TEXT        NOT NULL,
	issued_at         TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ,
	linked_account_id TEXT,
	PRIMARY KEY (chain, wallet_address)
)`

// uniqueViolation is the postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore is the relational implementation of the NonceStore.
// It exclusively owns the wallet_challenges table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the wallet_challenges table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Save upserts the challenge for its (chain, wallet) key. A concurrent
// insert race resolves on the primary key; the duplicate loser retries as
// an update through the ON CONFLICT clause.
func (s *PostgresStore) Save(ctx context.Context, challenge *core.Challenge) error {
	query := `
		INSERT INTO wallet_challenges (chain, wallet_address, nonce, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain, wallet_address)
		DO UPDATE SET nonce = EXCLUDED.nonce, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		challenge.Chain.String(),
		challenge.Address,
		challenge.Nonce,
		challenge.IssuedAt,
		challenge.ExpiresAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return fmt.Errorf("challenge upsert race lost: %w", core.ErrStoreUnavailable)
		}
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetActive(ctx context.Context, chain core.Chain, address string) (*core.Challenge, error) {
	query := `
		SELECT nonce, issued_at, expires_at, linked_account_id
		FROM wallet_challenges
		WHERE chain = $1 AND wallet_address = $2 AND nonce <> ''
	`

	row := s.db.QueryRowContext(ctx, query, chain.String(), address)

	challenge := &core.Challenge{Chain: chain, Address: address}
	var expiresAt sql.NullTime
	var linkedAccountID sql.NullString
	err := row.Scan(&challenge.Nonce, &challenge.IssuedAt, &expiresAt, &linkedAccountID)
	if err == sql.ErrNoRows {
		return nil, core.ErrNoChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	if expiresAt.Valid {
		challenge.ExpiresAt = expiresAt.Time
	}
	if linkedAccountID.Valid {
		challenge.LinkedAccountID = &linkedAccountID.String
	}
	return challenge, nil
}

// Consume clears nonce and expiry with a compare-and-clear guard: the
// update only applies while the stored nonce still equals the one the
// caller verified. Zero rows affected means another request consumed it
// first and this one must be rejected.
func (s *PostgresStore) Consume(ctx context.Context, chain core.Chain, address, nonce string) error {
	query := `
		UPDATE wallet_challenges
		SET nonce = '', expires_at = NULL
		WHERE chain = $1 AND wallet_address = $2 AND nonce = $3 AND nonce <> ''
	`

	result, err := s.db.ExecContext(ctx, query, chain.String(), address, nonce)
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrChallengeConsumed
	}
	return nil
}

// LinkAccount sets linked_account_id only when none is recorded yet. When
// the guarded update hits zero rows, the row is re-read and the already
// linked id wins, so a creation race never yields two bindings.
func (s *PostgresStore) LinkAccount(ctx context.Context, chain core.Chain, address, accountID string) (string, error) {
	query := `
		UPDATE wallet_challenges
		SET linked_account_id = $3
		WHERE chain = $1 AND wallet_address = $2 AND linked_account_id IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, chain.String(), address, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to link account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return accountID, nil
	}

	var linked sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT linked_account_id FROM wallet_challenges WHERE chain = $1 AND wallet_address = $2`,
		chain.String(), address,
	)
	if err := row.Scan(&linked); err != nil {
		return "", fmt.Errorf("failed to read linked account: %w", err)
	}
	if !linked.Valid || linked.String == "" {
		return "", fmt.Errorf("wallet has no challenge row to link: %w", core.ErrNoChallenge)
	}
	return linked.String, nil
}

var _ ports.NonceStore = (*PostgresStore)(nil)
