package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stagesmart/internal/domain"
)

// Memory is an in-process Ledger used when no database is configured and in
// tests. A single mutex serializes all balance mutations.
type Memory struct {
	startingGrant int

	mu       sync.Mutex
	accounts map[string]*domain.CreditAccount
}

// NewMemory creates an in-memory ledger. Accounts are seeded with
// startingGrant credits on first access.
func NewMemory(startingGrant int) *Memory {
	if startingGrant < 0 {
		startingGrant = 0
	}
	return &Memory{
		startingGrant: startingGrant,
		accounts:      make(map[string]*domain.CreditAccount),
	}
}

func (m *Memory) Balance(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account(ownerID).Balance, nil
}

func (m *Memory) TryDebit(ctx context.Context, ownerID string, amount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if amount <= 0 {
		return false, fmt.Errorf("ledger: debit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.account(ownerID)
	if account.Balance < amount {
		return false, nil
	}
	account.Balance -= amount
	account.UpdatedAt = time.Now()
	return true, nil
}

func (m *Memory) Credit(ctx context.Context, ownerID string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.account(ownerID)
	account.Balance += amount
	account.UpdatedAt = time.Now()
	return nil
}

// account returns the owner's record, creating it with the starting grant.
// Callers must hold mu.
func (m *Memory) account(ownerID string) *domain.CreditAccount {
	if existing, ok := m.accounts[ownerID]; ok {
		return existing
	}
	now := time.Now()
	created := &domain.CreditAccount{
		OwnerID:   ownerID,
		Balance:   m.startingGrant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.accounts[ownerID] = created
	return created
}

var _ Ledger = (*Memory)(nil)
