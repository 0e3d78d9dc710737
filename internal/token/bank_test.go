package token

import (
	"context"
	"testing"

	"pool-escrow/internal/domain"
)

func acct(b byte) domain.AccountID {
	var id domain.AccountID
	id[0] = b
	return id
}

func TestBank_TransferFrom(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()

	if err := bank.Mint(acct(1), 100); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	ok, err := bank.TransferFrom(ctx, acct(1), acct(2), 60)
	if err != nil || !ok {
		t.Fatalf("TransferFrom failed: ok=%v err=%v", ok, err)
	}

	if got := bank.BalanceOf(acct(1)); got != 40 {
		t.Errorf("sender balance: got %d, want 40", got)
	}
	if got := bank.BalanceOf(acct(2)); got != 60 {
		t.Errorf("receiver balance: got %d, want 60", got)
	}
}

func TestBank_InsufficientBalance(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()

	ok, err := bank.Transfer(ctx, acct(1), acct(2), 1)
	if err != nil {
		t.Fatalf("Transfer errored: %v", err)
	}
	if ok {
		t.Error("expected transfer to be declined")
	}
	if got := bank.BalanceOf(acct(2)); got != 0 {
		t.Errorf("receiver balance: got %d, want 0", got)
	}
}

func TestBank_NegativeAmount(t *testing.T) {
	bank := NewBank()

	if err := bank.Mint(acct(1), -5); err != ErrNegativeAmount {
		t.Errorf("Mint: expected ErrNegativeAmount, got %v", err)
	}
	if _, err := bank.Transfer(context.Background(), acct(1), acct(2), -5); err != ErrNegativeAmount {
		t.Errorf("Transfer: expected ErrNegativeAmount, got %v", err)
	}
}
