// Package ledger owns the per-owner credit balances. It is the only state
// shared across concurrent staging requests, so every mutation of a given
// owner's balance is serialized by the implementation.
package ledger

import "context"

// Ledger tracks consumable staging credits per owner. Accounts are created
// lazily on first access with a starting grant and are never deleted.
type Ledger interface {
	// Balance reports the current balance without mutating it.
	Balance(ctx context.Context, ownerID string) (int, error)

	// TryDebit atomically decrements the balance by amount iff the current
	// balance covers it. It reports false, with no mutation, otherwise.
	TryDebit(ctx context.Context, ownerID string, amount int) (bool, error)

	// Credit atomically increases the balance, e.g. when a purchase
	// completes.
	Credit(ctx context.Context, ownerID string, amount int) error
}
