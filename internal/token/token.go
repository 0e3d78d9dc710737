// Package token defines the transfer collaborator the ledger calls into.
// The ledger never mutates balances itself; it only observes success or
// failure of a transfer and commits its own state afterwards.
package token

import (
	"context"
	"errors"

	"pool-escrow/internal/domain"
)

// ErrNegativeAmount is returned for transfers of a negative amount.
var ErrNegativeAmount = errors.New("transfer amount must not be negative")

// Executor moves reward-token units between ledger accounts.
//
// A false return with a nil error means the transfer was declined at the
// collaborator level (insufficient balance or allowance); a non-nil error
// means the collaborator itself failed. The ledger treats both as
// TransferFailed.
type Executor interface {
	// TransferFrom moves amount from the holder's account into custody.
	TransferFrom(ctx context.Context, from, to domain.AccountID, amount int64) (bool, error)

	// Transfer moves amount out of the custody account to a recipient.
	Transfer(ctx context.Context, from, to domain.AccountID, amount int64) (bool, error)
}
