// Package stub provides a recording token.Executor for tests.
package stub

import (
	"context"
	"sync"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/token"
)

// Call records one transfer invocation.
type Call struct {
	Method string // "TransferFrom" or "Transfer"
	From   domain.AccountID
	To     domain.AccountID
	Amount int64
}

// Executor implements token.Executor for testing. All transfers succeed
// unless scripted otherwise via the exported fields.
type Executor struct {
	mu    sync.Mutex
	calls []Call

	// DenyTransferFrom makes TransferFrom return (false, nil).
	DenyTransferFrom bool
	// TransferFromErr makes TransferFrom return (false, TransferFromErr).
	TransferFromErr error
	// DenyTransferAt denies the Nth Transfer call (1-based); 0 disables.
	DenyTransferAt int
	// TransferErr makes every Transfer return (false, TransferErr).
	TransferErr error

	// OnTransferFrom, if set, runs during TransferFrom before it returns.
	// Used to simulate a collaborator calling back into the ledger.
	OnTransferFrom func()

	transferCount int
}

// NewExecutor creates a stub executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Compile-time interface check.
var _ token.Executor = (*Executor)(nil)

// TransferFrom records the call, runs the callback hook and returns the
// scripted result.
func (e *Executor) TransferFrom(_ context.Context, from, to domain.AccountID, amount int64) (bool, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Method: "TransferFrom", From: from, To: to, Amount: amount})
	hook := e.OnTransferFrom
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	if e.TransferFromErr != nil {
		return false, e.TransferFromErr
	}
	return !e.DenyTransferFrom, nil
}

// Transfer records the call and returns the scripted result.
func (e *Executor) Transfer(_ context.Context, from, to domain.AccountID, amount int64) (bool, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Method: "Transfer", From: from, To: to, Amount: amount})
	e.transferCount++
	n := e.transferCount
	e.mu.Unlock()

	if e.TransferErr != nil {
		return false, e.TransferErr
	}
	if e.DenyTransferAt > 0 && n == e.DenyTransferAt {
		return false, nil
	}
	return true, nil
}

// Calls returns a copy of the recorded calls.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (e *Executor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}
