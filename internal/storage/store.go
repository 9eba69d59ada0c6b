// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/settlement"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a create collides with an existing id.
	ErrDuplicate = errors.New("record already exists")

	// ErrNotPending is returned by settlement transitions that require the
	// record to still be pending.
	ErrNotPending = errors.New("settlement is not pending")
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateMember persists a new member.
	CreateMember(ctx context.Context, member *models.Member) error

	// GetMember retrieves a member by id. Returns ErrNotFound if absent.
	GetMember(ctx context.Context, id string) (*models.Member, error)

	// CreateGroup persists a group and its member list.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its ordered member list.
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// ListGroupsForMember retrieves all groups the member belongs to.
	ListGroupsForMember(ctx context.Context, memberID string) ([]*models.Group, error)

	// CreateExpense persists an expense and its splits in one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its splits, participant order
	// preserved.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// ListExpensesByGroup retrieves a group's expenses oldest first, so a
	// replay applies them in posting order.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// MarkExpenseSettled flips the expense's settled marker.
	MarkExpenseSettled(ctx context.Context, id string) error

	// SaveBalances writes the given encoded balance slots for a group.
	// Only the keys present are touched.
	SaveBalances(ctx context.Context, groupID string, slots map[string]uint64) error

	// LoadBalances reads every stored balance slot, keyed by group id then
	// member id. Used to warm the in-memory book on startup.
	LoadBalances(ctx context.Context) (map[string]map[string]uint64, error)

	// CreateSettlement persists a new settlement record.
	CreateSettlement(ctx context.Context, s *models.Settlement) error

	// GetSettlement retrieves a settlement by id.
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)

	// CompleteSettlement flips a pending settlement to completed, recording
	// the transfer proof. Returns ErrNotPending if it is no longer pending.
	CompleteSettlement(ctx context.Context, id, proof string, completedAt int64) error

	// CancelSettlement flips a pending settlement to cancelled.
	// Returns ErrNotPending if it is no longer pending.
	CancelSettlement(ctx context.Context, id string) error

	// DeletePendingSettlement removes a settlement that is still pending.
	// Returns ErrNotPending if it is no longer pending.
	DeletePendingSettlement(ctx context.Context, id string) error

	// ListSettlementsByGroup retrieves a group's settlements newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// ListSettlementsForMember retrieves every settlement the member is a
	// party to, as debtor or creditor, newest first.
	ListSettlementsForMember(ctx context.Context, memberID string) ([]*models.Settlement, error)

	// ListExpiredPendingSettlements returns ids of pending settlements whose
	// expiry passed before now. Feeds the reclaim sweep.
	ListExpiredPendingSettlements(ctx context.Context, now int64) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// SettlementStore adapts a Store to the settlement state machine's store
// contract, translating storage sentinels into the machine's.
type SettlementStore struct {
	Store Store
}

var _ settlement.Store = SettlementStore{}

func (s SettlementStore) Create(ctx context.Context, st *models.Settlement) error {
	return s.Store.CreateSettlement(ctx, st)
}

func (s SettlementStore) Get(ctx context.Context, id string) (*models.Settlement, error) {
	st, err := s.Store.GetSettlement(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, settlement.ErrNotFound
	}
	return st, err
}

func (s SettlementStore) Complete(ctx context.Context, id, proof string, completedAt int64) error {
	return mapTransitionErr(s.Store.CompleteSettlement(ctx, id, proof, completedAt))
}

func (s SettlementStore) Cancel(ctx context.Context, id string) error {
	return mapTransitionErr(s.Store.CancelSettlement(ctx, id))
}

func (s SettlementStore) DeletePending(ctx context.Context, id string) error {
	return mapTransitionErr(s.Store.DeletePendingSettlement(ctx, id))
}

func mapTransitionErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return settlement.ErrNotFound
	case errors.Is(err, ErrNotPending):
		return settlement.ErrNotPending
	default:
		return err
	}
}
