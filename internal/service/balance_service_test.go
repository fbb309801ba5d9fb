package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okozhin/icewheel/internal/domain"
)

const testWallet = "UQwallet0000000000000000000000000000000000000000"

func TestBalanceAdjust(t *testing.T) {
	ctx := context.Background()
	balances := newFakeBalances()
	svc := NewBalanceService(balances, newFakeIdentity(), discardLogger())

	got, err := svc.Adjust(ctx, "A", 500)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got != 500 {
		t.Errorf("balance = %d, want 500", got)
	}

	got, err = svc.Adjust(ctx, "A", -200)
	if err != nil {
		t.Fatalf("Adjust (debit): %v", err)
	}
	if got != 300 {
		t.Errorf("balance = %d, want 300", got)
	}

	// A debit below zero is rejected and the balance stands.
	if _, err := svc.Adjust(ctx, "A", -301); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientFunds", err)
	}
	if got, _ = svc.Get(ctx, "A"); got != 300 {
		t.Errorf("balance after rejected debit = %d, want 300", got)
	}

	// Zero delta reads without writing.
	if got, err = svc.Adjust(ctx, "A", 0); err != nil || got != 300 {
		t.Errorf("zero delta = (%d, %v), want (300, nil)", got, err)
	}
}

func TestBalanceGet_UnknownAccountIsZero(t *testing.T) {
	svc := NewBalanceService(newFakeBalances(), newFakeIdentity(), discardLogger())
	got, err := svc.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestResolveTarget(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()
	identity.BindWallet(ctx, 777, testWallet)
	identity.BindUsername(ctx, "alice", 777)
	svc := NewBalanceService(newFakeBalances(), identity, discardLogger())

	tests := []struct {
		name         string
		target       string
		wantWallet   string
		wantResolved string
		wantErr      error
	}{
		{name: "username", target: "@alice", wantWallet: testWallet, wantResolved: "@alice"},
		{name: "username case-insensitive", target: "@Alice", wantWallet: testWallet, wantResolved: "@alice"},
		{name: "telegram id", target: "777", wantWallet: testWallet, wantResolved: "tg:777"},
		{name: "raw wallet passes through", target: testWallet, wantWallet: testWallet, wantResolved: "wallet"},
		{name: "surrounding space trimmed", target: "  @alice ", wantWallet: testWallet, wantResolved: "@alice"},
		{name: "unknown username", target: "@bob", wantErr: domain.ErrBadTarget},
		{name: "unbound telegram id", target: "123", wantErr: domain.ErrBadTarget},
		{name: "short garbage", target: "abc", wantErr: domain.ErrBadTarget},
		{name: "empty", target: "", wantErr: domain.ErrBadTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet, resolved, err := svc.ResolveTarget(ctx, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTarget(%q): %v", tt.target, err)
			}
			if wallet != tt.wantWallet || resolved != tt.wantResolved {
				t.Errorf("ResolveTarget(%q) = (%q, %q), want (%q, %q)",
					tt.target, wallet, resolved, tt.wantWallet, tt.wantResolved)
			}
		})
	}
}

func TestResolveTarget_UsernameWithoutWallet(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()
	identity.BindUsername(ctx, "carol", 888) // username bound, wallet never was
	svc := NewBalanceService(newFakeBalances(), identity, discardLogger())

	_, _, err := svc.ResolveTarget(ctx, "@carol")
	if !errors.Is(err, domain.ErrBadTarget) {
		t.Fatalf("err = %v, want ErrBadTarget", err)
	}
	if !strings.Contains(err.Error(), "no wallet") {
		t.Errorf("err %q does not name the missing wallet", err)
	}
}
