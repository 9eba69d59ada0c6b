package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/planner"
	"github.com/splitstack/tally/internal/splitter"
	"github.com/splitstack/tally/internal/storage"
)

// LedgerService posts expenses, maintains the in-memory balance book, and
// computes settlement plans. It is the only writer of expense and balance
// rows, so the book and the store move in lockstep.
type LedgerService struct {
	store  storage.Store
	book   *ledger.Book
	groups ledger.MembershipOracle
	logger *slog.Logger
}

// NewLedgerService creates a ledger service over the given store and book.
func NewLedgerService(store storage.Store, book *ledger.Book, groups ledger.MembershipOracle, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		book:   book,
		groups: groups,
		logger: logger,
	}
}

// PostExpenseInput carries the parameters of a new expense. The caller is
// the payer and must lead the participant list: participant order decides
// who absorbs the remainder units of an uneven split.
type PostExpenseInput struct {
	GroupID      string
	Amount       int64
	Participants []string
	Note         string
}

// PostExpense splits the amount across the participants, persists the
// expense, and applies it to the group's balances. The expense is immutable
// once posted.
func (s *LedgerService) PostExpense(ctx context.Context, caller string, in PostExpenseInput) (*models.Expense, error) {
	s.logger.Info("PostExpense request",
		"group_id", in.GroupID,
		"payer_id", caller,
		"amount", in.Amount,
		"participants_count", len(in.Participants),
	)

	if len(in.Note) > MaxExpenseNoteLength {
		return nil, fmt.Errorf("%w: note too long (max %d chars)", ErrInvalidInput, MaxExpenseNoteLength)
	}
	if err := s.requireMembers(ctx, in.GroupID, append([]string{caller}, in.Participants...)); err != nil {
		return nil, err
	}
	payerListed := false
	for _, id := range in.Participants {
		if id == caller {
			payerListed = true
			break
		}
	}
	if !payerListed {
		return nil, fmt.Errorf("%w: payer %s", ErrPayerNotParticipant, caller)
	}

	shares, err := splitter.Split(in.Amount, in.Participants)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		GroupID:      in.GroupID,
		PayerID:      caller,
		Amount:       in.Amount,
		Participants: in.Participants,
		Note:         in.Note,
	}
	for _, share := range shares {
		expense.Splits = append(expense.Splits, models.Split{
			MemberID: share.MemberID,
			Owed:     share.Owed,
		})
	}

	// The expense row and the balance slots are written inside the book's
	// commit, under the group lock: if either write fails the in-memory
	// mutation rolls back and the book still matches the store.
	err = s.book.ApplyExpense(in.GroupID, caller, in.Amount, shares, func(changed map[string]uint64) error {
		if err := s.store.CreateExpense(ctx, expense); err != nil {
			return err
		}
		return s.store.SaveBalances(ctx, in.GroupID, changed)
	})
	if err != nil {
		s.logger.Error("PostExpense failed", "group_id", in.GroupID, "error", err)
		return nil, err
	}
	for i := range expense.Splits {
		expense.Splits[i].ExpenseID = expense.ID
	}

	s.logger.Info("Expense posted", "expense_id", expense.ID, "group_id", in.GroupID)
	return expense, nil
}

// GetExpense retrieves an expense. Group members only.
func (s *LedgerService) GetExpense(ctx context.Context, caller, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMembers(ctx, expense.GroupID, []string{caller}); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses retrieves a group's expenses, oldest first. Members only.
func (s *LedgerService) ListExpenses(ctx context.Context, caller, groupID string) ([]*models.Expense, error) {
	if err := s.requireMembers(ctx, groupID, []string{caller}); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByGroup(ctx, groupID)
}

// MarkExpenseSettled flips the expense's informational settled marker.
// Payer only; balances and splits are untouched.
func (s *LedgerService) MarkExpenseSettled(ctx context.Context, caller, expenseID string) error {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.PayerID != caller {
		return fmt.Errorf("%w: expense %s", ErrNotPayer, expenseID)
	}
	return s.store.MarkExpenseSettled(ctx, expenseID)
}

// GetBalance returns one member's signed net balance in a group.
// Members only; a member with no history is exactly settled at zero.
func (s *LedgerService) GetBalance(ctx context.Context, caller, groupID, memberID string) (int64, error) {
	if err := s.requireMembers(ctx, groupID, []string{caller, memberID}); err != nil {
		return 0, err
	}
	return s.book.Balance(groupID, memberID)
}

// GroupBalances returns the group's non-zero signed balances.
func (s *LedgerService) GroupBalances(ctx context.Context, caller, groupID string) (map[string]int64, error) {
	if err := s.requireMembers(ctx, groupID, []string{caller}); err != nil {
		return nil, err
	}
	return s.book.Snapshot(groupID)
}

// SettlementPlan computes the minimal transfer list that settles the
// group's current balances. The plan is advisory: it is recomputed from the
// live snapshot on every call and never stored.
func (s *LedgerService) SettlementPlan(ctx context.Context, caller, groupID string) ([]planner.Transfer, error) {
	balances, err := s.GroupBalances(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}
	plan, err := planner.ComputePlan(balances)
	if err != nil {
		s.logger.Error("SettlementPlan failed", "group_id", groupID, "error", err)
		return nil, err
	}
	s.logger.Info("SettlementPlan computed", "group_id", groupID, "transfers", len(plan))
	return plan, nil
}

// RecomputeBalances rebuilds a group's balances from its full expense
// history, persists them, and reloads the book. Recovery and audit path.
func (s *LedgerService) RecomputeBalances(ctx context.Context, groupID string) (map[string]int64, error) {
	s.logger.Info("RecomputeBalances request", "group_id", groupID)

	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	balances, err := ledger.Replay(expenses)
	if err != nil {
		s.logger.Error("RecomputeBalances replay failed", "group_id", groupID, "error", err)
		return nil, err
	}

	encoded := make(map[string]uint64, len(balances))
	for member, v := range balances {
		enc, err := ledger.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encoding balance for %s: %w", member, err)
		}
		encoded[member] = enc
	}
	if err := s.store.SaveBalances(ctx, groupID, encoded); err != nil {
		return nil, err
	}
	if err := s.book.Load(groupID, encoded); err != nil {
		return nil, err
	}

	s.logger.Info("Balances recomputed", "group_id", groupID, "members", len(balances))
	return balances, nil
}

// requireMembers verifies every id belongs to the group.
func (s *LedgerService) requireMembers(ctx context.Context, groupID string, memberIDs []string) error {
	checked := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		if checked[id] {
			continue
		}
		checked[id] = true
		ok, err := s.groups.IsMember(ctx, groupID, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: member %s, group %s", ErrNotMember, id, groupID)
		}
	}
	return nil
}
