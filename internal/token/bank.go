package token

import (
	"context"
	"sync"

	"pool-escrow/internal/domain"
)

// Bank is an in-memory Executor backed by a balance table. It stands in for
// the real token program in the server binary and in tests that need
// balance-sensitive behavior.
type Bank struct {
	mu       sync.RWMutex
	balances map[domain.AccountID]int64
}

// NewBank creates an empty in-memory bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[domain.AccountID]int64)}
}

// Compile-time interface check.
var _ Executor = (*Bank)(nil)

// Mint credits an account, creating it if needed.
func (b *Bank) Mint(account domain.AccountID, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
	return nil
}

// BalanceOf returns the current balance of an account; unknown accounts
// have a zero balance.
func (b *Bank) BalanceOf(account domain.AccountID) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[account]
}

// TransferFrom moves amount from the holder's account into custody.
// Returns false without error when the holder's balance is insufficient.
func (b *Bank) TransferFrom(_ context.Context, from, to domain.AccountID, amount int64) (bool, error) {
	return b.move(from, to, amount)
}

// Transfer moves amount out of the custody account to a recipient.
// Returns false without error when the custody balance is insufficient.
func (b *Bank) Transfer(_ context.Context, from, to domain.AccountID, amount int64) (bool, error) {
	return b.move(from, to, amount)
}

func (b *Bank) move(from, to domain.AccountID, amount int64) (bool, error) {
	if amount < 0 {
		return false, ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return false, nil
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return true, nil
}
