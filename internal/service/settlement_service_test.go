package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/storage"
	"github.com/splitstack/tally/internal/storage/sqlite"
	"github.com/splitstack/tally/internal/transfer"
)

// newSettlementFixture builds a sqlite-backed settlement service with a
// funded debtor.
func newSettlementFixture(t *testing.T) (*SettlementService, *transfer.Bank, string) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		if err := store.CreateMember(ctx, models.NewMember(id, "hash")); err != nil {
			t.Fatal(err)
		}
	}
	logger := discardLogger()
	groups := NewGroupService(store, logger)
	group, err := groups.CreateGroup(ctx, "bob", "Flat", []string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}

	bank := transfer.NewBank()
	bank.Deposit("bob", 1000)
	bank.Deposit("alice", 0)
	machine := settlement.NewMachine(storage.SettlementStore{Store: store}, bank)
	return NewSettlementService(machine, store, groups, logger), bank, group.ID
}

func TestSettlementLifecycle(t *testing.T) {
	svc, bank, groupID := newSettlementFixture(t)
	ctx := context.Background()

	created, err := svc.Initiate(ctx, "bob", settlement.InitiateInput{
		GroupID:    groupID,
		CreditorID: "alice",
		Amount:     250,
		Note:       "rent share",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if created.State != models.SettlementPending {
		t.Fatalf("state = %s, want pending", created.State)
	}

	executed, err := svc.Execute(ctx, "bob", created.ID)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if executed.State != models.SettlementCompleted || executed.TransferProof == "" {
		t.Errorf("executed = %+v", executed)
	}
	if got := bank.AccountBalance("alice"); got != 250 {
		t.Errorf("alice funds = %d, want 250", got)
	}

	// The completed record survives in the group listing.
	list, err := svc.ListByGroup(ctx, "alice", groupID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(list) != 1 || list[0].State != models.SettlementCompleted {
		t.Errorf("listing = %+v", list)
	}

	// Exactly once: a retry is rejected and moves no further value.
	if _, err := svc.Execute(ctx, "bob", created.ID); !errors.Is(err, settlement.ErrAlreadyExecuted) {
		t.Errorf("second Execute error = %v, want ErrAlreadyExecuted", err)
	}
	if got := bank.AccountBalance("alice"); got != 250 {
		t.Errorf("alice funds after retry = %d, want 250", got)
	}
}

func TestInitiateRequiresGroupMembership(t *testing.T) {
	svc, _, groupID := newSettlementFixture(t)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "bob", settlement.InitiateInput{
		GroupID:    groupID,
		CreditorID: "stranger",
		Amount:     10,
	}); !errors.Is(err, ErrNotMember) {
		t.Errorf("Initiate with outside creditor error = %v, want ErrNotMember", err)
	}

	// Standalone settlements skip the membership check entirely.
	if _, err := svc.Initiate(ctx, "bob", settlement.InitiateInput{
		CreditorID: "stranger",
		Amount:     10,
	}); err != nil {
		t.Errorf("standalone Initiate failed: %v", err)
	}
}

func TestReclaimExpiredSweep(t *testing.T) {
	svc, _, groupID := newSettlementFixture(t)
	ctx := context.Background()

	// One settlement already expired, created straight through the store
	// with a window in the past, and one still live.
	now := time.Now().Unix()
	expired := &models.Settlement{
		GroupID:    groupID,
		DebtorID:   "bob",
		CreditorID: "alice",
		Amount:     10,
		State:      models.SettlementPending,
		CreatedAt:  now - 100,
		ExpiresAt:  now - 10,
	}
	if err := svc.store.CreateSettlement(ctx, expired); err != nil {
		t.Fatal(err)
	}
	live, err := svc.Initiate(ctx, "bob", settlement.InitiateInput{
		GroupID:    groupID,
		CreditorID: "alice",
		Amount:     20,
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := svc.ReclaimExpired(ctx)
	if err != nil {
		t.Fatalf("ReclaimExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("reclaimed %d settlements, want 1", n)
	}
	if _, err := svc.Get(ctx, expired.ID); !errors.Is(err, settlement.ErrNotFound) {
		t.Errorf("expired settlement still present: %v", err)
	}
	if _, err := svc.Get(ctx, live.ID); err != nil {
		t.Errorf("live settlement swept: %v", err)
	}
}
