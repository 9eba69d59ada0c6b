package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/splitter"
	"github.com/splitstack/tally/internal/storage/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLedgerFixture builds a sqlite-backed ledger service with one group of
// three registered members.
func newLedgerFixture(t *testing.T) (*LedgerService, *GroupService, *sqlite.SQLiteStore, string) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		if err := store.CreateMember(ctx, models.NewMember(id, "hash")); err != nil {
			t.Fatal(err)
		}
	}

	logger := discardLogger()
	groups := NewGroupService(store, logger)
	group, err := groups.CreateGroup(ctx, "alice", "Trip", []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	svc := NewLedgerService(store, ledger.NewBook(), groups, logger)
	return svc, groups, store, group.ID
}

func TestPostExpenseUpdatesBalances(t *testing.T) {
	svc, _, _, groupID := newLedgerFixture(t)
	ctx := context.Background()

	expense, err := svc.PostExpense(ctx, "alice", PostExpenseInput{
		GroupID:      groupID,
		Amount:       150,
		Participants: []string{"alice", "bob", "carol"},
		Note:         "dinner",
	})
	if err != nil {
		t.Fatalf("PostExpense failed: %v", err)
	}
	if expense.ID == "" {
		t.Fatal("expected expense id to be assigned")
	}
	if len(expense.Splits) != 3 || expense.Splits[0].Owed != 50 {
		t.Errorf("splits = %+v", expense.Splits)
	}

	// 150 paid, own share 50: alice is up 100, the others down 50 each.
	tests := []struct {
		member string
		want   int64
	}{
		{"alice", 100},
		{"bob", -50},
		{"carol", -50},
	}
	for _, tt := range tests {
		got, err := svc.GetBalance(ctx, "alice", groupID, tt.member)
		if err != nil {
			t.Fatalf("GetBalance(%s) failed: %v", tt.member, err)
		}
		if got != tt.want {
			t.Errorf("balance(%s) = %d, want %d", tt.member, got, tt.want)
		}
	}
}

func TestPostExpenseValidation(t *testing.T) {
	svc, _, _, groupID := newLedgerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  string
		in      PostExpenseInput
		wantErr error
	}{
		{
			name:    "payer must participate",
			caller:  "alice",
			in:      PostExpenseInput{GroupID: groupID, Amount: 100, Participants: []string{"bob", "carol"}},
			wantErr: ErrPayerNotParticipant,
		},
		{
			name:    "caller outside group",
			caller:  "mallory",
			in:      PostExpenseInput{GroupID: groupID, Amount: 100, Participants: []string{"mallory"}},
			wantErr: ErrNotMember,
		},
		{
			name:    "participant outside group",
			caller:  "alice",
			in:      PostExpenseInput{GroupID: groupID, Amount: 100, Participants: []string{"alice", "mallory"}},
			wantErr: ErrNotMember,
		},
		{
			name:    "amount must be positive",
			caller:  "alice",
			in:      PostExpenseInput{GroupID: groupID, Amount: 0, Participants: []string{"alice", "bob"}},
			wantErr: splitter.ErrInvalidAmount,
		},
		{
			name:    "duplicate participant",
			caller:  "alice",
			in:      PostExpenseInput{GroupID: groupID, Amount: 100, Participants: []string{"alice", "alice"}},
			wantErr: splitter.ErrDuplicateParticipant,
		},
		{
			name:   "note too long",
			caller: "alice",
			in: PostExpenseInput{
				GroupID: groupID, Amount: 100,
				Participants: []string{"alice", "bob"},
				Note:         string(make([]byte, MaxExpenseNoteLength+1)),
			},
			wantErr: ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PostExpense(ctx, tt.caller, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("PostExpense error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing above should have moved any balance.
	balances, err := svc.GroupBalances(ctx, "alice", groupID)
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 0 {
		t.Errorf("balances after rejected expenses = %v, want empty", balances)
	}
}

func TestSettlementPlanClearsGroup(t *testing.T) {
	svc, _, _, groupID := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := svc.PostExpense(ctx, "alice", PostExpenseInput{
		GroupID: groupID, Amount: 150, Participants: []string{"alice", "bob", "carol"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PostExpense(ctx, "bob", PostExpenseInput{
		GroupID: groupID, Amount: 60, Participants: []string{"bob", "carol"},
	}); err != nil {
		t.Fatal(err)
	}

	plan, err := svc.SettlementPlan(ctx, "alice", groupID)
	if err != nil {
		t.Fatalf("SettlementPlan failed: %v", err)
	}

	// Applying the plan must settle everyone exactly.
	balances, err := svc.GroupBalances(ctx, "alice", groupID)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range plan {
		balances[tr.DebtorID] += tr.Amount
		balances[tr.CreditorID] -= tr.Amount
	}
	for member, v := range balances {
		if v != 0 {
			t.Errorf("after plan, %s = %d, want 0", member, v)
		}
	}
}

func TestMarkExpenseSettledIsPayerOnly(t *testing.T) {
	svc, _, _, groupID := newLedgerFixture(t)
	ctx := context.Background()

	expense, err := svc.PostExpense(ctx, "alice", PostExpenseInput{
		GroupID: groupID, Amount: 90, Participants: []string{"alice", "bob", "carol"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkExpenseSettled(ctx, "bob", expense.ID); !errors.Is(err, ErrNotPayer) {
		t.Errorf("MarkExpenseSettled by bob error = %v, want ErrNotPayer", err)
	}
	if err := svc.MarkExpenseSettled(ctx, "alice", expense.ID); err != nil {
		t.Fatalf("MarkExpenseSettled failed: %v", err)
	}

	got, err := svc.GetExpense(ctx, "bob", expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Settled {
		t.Error("expense not marked settled")
	}
	// The marker is informational: balances are untouched.
	if bal, _ := svc.GetBalance(ctx, "alice", groupID, "alice"); bal != 60 {
		t.Errorf("alice balance after settled marker = %d, want 60", bal)
	}
}

func TestRecomputeBalancesMatchesIncremental(t *testing.T) {
	svc, _, _, groupID := newLedgerFixture(t)
	ctx := context.Background()

	for _, e := range []struct {
		payer        string
		amount       int64
		participants []string
	}{
		{"alice", 150, []string{"alice", "bob", "carol"}},
		{"bob", 99, []string{"bob", "alice"}},
		{"carol", 7, []string{"carol", "alice", "bob"}},
	} {
		if _, err := svc.PostExpense(ctx, e.payer, PostExpenseInput{
			GroupID: groupID, Amount: e.amount, Participants: e.participants,
		}); err != nil {
			t.Fatal(err)
		}
	}

	before, err := svc.GroupBalances(ctx, "alice", groupID)
	if err != nil {
		t.Fatal(err)
	}

	recomputed, err := svc.RecomputeBalances(ctx, groupID)
	if err != nil {
		t.Fatalf("RecomputeBalances failed: %v", err)
	}
	for member, want := range before {
		if recomputed[member] != want {
			t.Errorf("recomputed %s = %d, incremental %d", member, recomputed[member], want)
		}
	}

	after, err := svc.GroupBalances(ctx, "alice", groupID)
	if err != nil {
		t.Fatal(err)
	}
	for member, want := range before {
		if after[member] != want {
			t.Errorf("book after recompute: %s = %d, want %d", member, after[member], want)
		}
	}
}

// TestBookSurvivesRestart posts expenses, rebuilds the book from the stored
// slots, and checks the balances carried over.
func TestBookSurvivesRestart(t *testing.T) {
	svc, groups, store, groupID := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := svc.PostExpense(ctx, "alice", PostExpenseInput{
		GroupID: groupID, Amount: 150, Participants: []string{"alice", "bob", "carol"},
	}); err != nil {
		t.Fatal(err)
	}

	slots, err := store.LoadBalances(ctx)
	if err != nil {
		t.Fatalf("LoadBalances failed: %v", err)
	}
	fresh := ledger.NewBook()
	for gid, balances := range slots {
		if err := fresh.Load(gid, balances); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	restarted := NewLedgerService(store, fresh, groups, discardLogger())
	got, err := restarted.GetBalance(ctx, "alice", groupID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != 100 {
		t.Errorf("alice balance after restart = %d, want 100", got)
	}
}
