package domain

import "errors"

// Ledger errors. All are terminal for the operation that raised them; no
// state is applied after a precondition failure.
var (
	// ErrDuplicatePool is returned when creating a pool with an id that exists.
	ErrDuplicatePool = errors.New("pool id already exists")

	// ErrInvalidCircuitBand is returned when the current price lies outside
	// the supplied circuit limits at creation time.
	ErrInvalidCircuitBand = errors.New("current price outside circuit band")

	// ErrPoolNotFound is returned when the pool id is unknown.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolNotStarted is returned when entering before the active window.
	ErrPoolNotStarted = errors.New("pool not started")

	// ErrPoolEnded is returned when entering after the active window.
	ErrPoolEnded = errors.New("pool ended")

	// ErrPoolStillActive is returned when withdrawing before the window closes.
	ErrPoolStillActive = errors.New("pool still active")

	// ErrPriceOutOfBand is returned when the observed price is outside the
	// pool's circuit limits.
	ErrPriceOutOfBand = errors.New("observed price outside circuit band")

	// ErrTransferFailed is returned when the external token transfer does
	// not succeed.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrNotAuthorized is returned when the caller lacks the administrator
	// capability for an admin-only operation.
	ErrNotAuthorized = errors.New("caller is not an administrator")

	// ErrReentrancy is returned when a mutating call arrives while another
	// mutation on the same pool has an external transfer in flight.
	ErrReentrancy = errors.New("reentrant mutation rejected")

	// ErrNoRecipients is returned when a withdrawal names no recipients.
	ErrNoRecipients = errors.New("recipient list is empty")
)
