package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/storage"
)

// SettlementService fronts the settlement state machine with membership
// checks and listings, and runs the expired-settlement sweep.
type SettlementService struct {
	machine *settlement.Machine
	store   storage.Store
	groups  ledger.MembershipOracle
	logger  *slog.Logger
}

// NewSettlementService creates a settlement service.
func NewSettlementService(machine *settlement.Machine, store storage.Store, groups ledger.MembershipOracle, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		machine: machine,
		store:   store,
		groups:  groups,
		logger:  logger,
	}
}

// Initiate creates a pending settlement with the caller as debtor. If the
// settlement is bound to a group, both parties must belong to it.
func (s *SettlementService) Initiate(ctx context.Context, caller string, in settlement.InitiateInput) (*models.Settlement, error) {
	s.logger.Info("InitiateSettlement request",
		"group_id", in.GroupID,
		"debtor_id", caller,
		"creditor_id", in.CreditorID,
		"amount", in.Amount,
	)

	if in.GroupID != "" {
		for _, id := range []string{caller, in.CreditorID} {
			ok, err := s.groups.IsMember(ctx, in.GroupID, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: member %s, group %s", ErrNotMember, id, in.GroupID)
			}
		}
	}

	settled, err := s.machine.Initiate(ctx, caller, caller, in)
	if err != nil {
		s.logger.Error("InitiateSettlement failed", "debtor_id", caller, "error", err)
		return nil, err
	}

	s.logger.Info("Settlement initiated", "settlement_id", settled.ID, "expires_at", settled.ExpiresAt)
	return settled, nil
}

// Execute performs the settlement's transfer. Debtor only.
func (s *SettlementService) Execute(ctx context.Context, caller, id string) (*models.Settlement, error) {
	s.logger.Info("ExecuteSettlement request", "settlement_id", id, "caller", caller)

	executed, err := s.machine.Execute(ctx, caller, id)
	if err != nil {
		s.logger.Warn("ExecuteSettlement failed", "settlement_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Settlement executed",
		"settlement_id", executed.ID,
		"transfer_proof", executed.TransferProof,
	)
	return executed, nil
}

// Cancel abandons a pending settlement. Debtor only.
func (s *SettlementService) Cancel(ctx context.Context, caller, id string) (*models.Settlement, error) {
	s.logger.Info("CancelSettlement request", "settlement_id", id, "caller", caller)
	return s.machine.Cancel(ctx, caller, id)
}

// Reclaim deletes one expired, never-executed settlement.
func (s *SettlementService) Reclaim(ctx context.Context, id string) error {
	s.logger.Info("ReclaimSettlement request", "settlement_id", id)
	return s.machine.Reclaim(ctx, id)
}

// Get retrieves a settlement record.
func (s *SettlementService) Get(ctx context.Context, id string) (*models.Settlement, error) {
	return s.machine.Get(ctx, id)
}

// ListByGroup retrieves a group's settlements, newest first. Members only.
func (s *SettlementService) ListByGroup(ctx context.Context, caller, groupID string) ([]*models.Settlement, error) {
	ok, err := s.groups.IsMember(ctx, groupID, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: member %s, group %s", ErrNotMember, caller, groupID)
	}
	return s.store.ListSettlementsByGroup(ctx, groupID)
}

// ListForMember retrieves every settlement the caller is a party to,
// newest first.
func (s *SettlementService) ListForMember(ctx context.Context, caller string) ([]*models.Settlement, error) {
	return s.store.ListSettlementsForMember(ctx, caller)
}

// ReclaimExpired sweeps every expired pending settlement and reclaims it,
// returning how many were deleted. Settlements that race into another state
// mid-sweep are skipped, not errors.
func (s *SettlementService) ReclaimExpired(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpiredPendingSettlements(ctx, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, id := range ids {
		err := s.machine.Reclaim(ctx, id)
		switch {
		case err == nil:
			reclaimed++
		case errors.Is(err, settlement.ErrNotFound),
			errors.Is(err, settlement.ErrAlreadyExecuted),
			errors.Is(err, settlement.ErrCancelled),
			errors.Is(err, settlement.ErrNotExpired):
			// Lost a race with a concurrent transition; leave it be.
		default:
			return reclaimed, err
		}
	}

	if reclaimed > 0 {
		s.logger.Info("Expired settlements reclaimed", "count", reclaimed)
	}
	return reclaimed, nil
}
