package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"stagesmart/internal/ledger"
)

// LedgerPG implements ledger.Ledger backed by PostgreSQL. Atomicity comes
// from conditional single-statement updates, so concurrent debits for the
// same owner serialize on the row.
type LedgerPG struct {
	pool          *pgxpool.Pool
	startingGrant int
}

// NewLedger creates a Postgres-backed ledger. Accounts are seeded with
// startingGrant credits on first access.
func NewLedger(pool *pgxpool.Pool, startingGrant int) *LedgerPG {
	if startingGrant < 0 {
		startingGrant = 0
	}
	return &LedgerPG{pool: pool, startingGrant: startingGrant}
}

// Balance reports the owner's balance, creating the account lazily.
func (r *LedgerPG) Balance(ctx context.Context, ownerID string) (int, error) {
	query := `
INSERT INTO credit_accounts (owner_id, balance)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
RETURNING balance;
`
	var balance int
	if err := r.pool.QueryRow(ctx, query, ownerID, r.startingGrant).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

// TryDebit decrements the balance iff it covers the amount.
func (r *LedgerPG) TryDebit(ctx context.Context, ownerID string, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("ledger: debit amount must be positive, got %d", amount)
	}
	if _, err := r.Balance(ctx, ownerID); err != nil {
		return false, err
	}
	query := `
UPDATE credit_accounts
SET balance = balance - $2, updated_at = NOW()
WHERE owner_id = $1 AND balance >= $2;
`
	tag, err := r.pool.Exec(ctx, query, ownerID, amount)
	if err != nil {
		return false, fmt.Errorf("ledger debit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Credit increases the balance, creating the account if needed. The starting
// grant is not added on top of a purchase-created account.
func (r *LedgerPG) Credit(ctx context.Context, ownerID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive, got %d", amount)
	}
	query := `
INSERT INTO credit_accounts (owner_id, balance)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO UPDATE
SET balance = credit_accounts.balance + $2, updated_at = NOW();
`
	if _, err := r.pool.Exec(ctx, query, ownerID, amount); err != nil {
		return fmt.Errorf("ledger credit: %w", err)
	}
	return nil
}

var _ ledger.Ledger = (*LedgerPG)(nil)
