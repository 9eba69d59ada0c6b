package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/storage"
)

// CreateSettlement persists a new settlement record.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	var note interface{}
	if settlement.Note != "" {
		note = settlement.Note
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, expense_id, debtor_id, creditor_id, amount,
		                          state, note, created_at, expires_at, completed_at, transfer_proof)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.ExpenseID,
		settlement.DebtorID, settlement.CreditorID, settlement.Amount,
		string(settlement.State), note, settlement.CreatedAt, settlement.ExpiresAt,
		settlement.CompletedAt, settlement.TransferProof,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: settlement %s", storage.ErrDuplicate, settlement.ID)
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	return nil
}

// GetSettlement retrieves a settlement by id.
func (s *SQLiteStore) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	settlement, err := s.scanSettlement(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, expense_id, debtor_id, creditor_id, amount,
		        state, note, created_at, expires_at, completed_at, transfer_proof
		 FROM settlements WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: settlement %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// CompleteSettlement flips a pending settlement to completed. The WHERE
// clause is the compare-and-set: a concurrent transition that got there
// first leaves zero rows affected and the caller gets ErrNotPending.
func (s *SQLiteStore) CompleteSettlement(ctx context.Context, id, proof string, completedAt int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET state = ?, transfer_proof = ?, completed_at = ?
		 WHERE id = ? AND state = ?`,
		string(models.SettlementCompleted), proof, completedAt,
		id, string(models.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to complete settlement: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// CancelSettlement flips a pending settlement to cancelled.
func (s *SQLiteStore) CancelSettlement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE settlements SET state = ? WHERE id = ? AND state = ?",
		string(models.SettlementCancelled), id, string(models.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel settlement: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// DeletePendingSettlement removes a settlement that is still pending.
func (s *SQLiteStore) DeletePendingSettlement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM settlements WHERE id = ? AND state = ?",
		id, string(models.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// ListSettlementsByGroup retrieves a group's settlements newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, expense_id, debtor_id, creditor_id, amount,
		        state, note, created_at, expires_at, completed_at, transfer_proof
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := s.scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

// ListSettlementsForMember retrieves every settlement the member is a party
// to, as debtor or creditor, newest first.
func (s *SQLiteStore) ListSettlementsForMember(ctx context.Context, memberID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, expense_id, debtor_id, creditor_id, amount,
		        state, note, created_at, expires_at, completed_at, transfer_proof
		 FROM settlements WHERE debtor_id = ? OR creditor_id = ?
		 ORDER BY created_at DESC, id`,
		memberID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements for member: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := s.scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

// ListExpiredPendingSettlements returns ids of pending settlements whose
// expiry passed before now.
func (s *SQLiteStore) ListExpiredPendingSettlements(ctx context.Context, now int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM settlements WHERE state = ? AND expires_at < ?",
		string(models.SettlementPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired settlements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan settlement id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement ids: %w", err)
	}

	return ids, nil
}

// checkTransition distinguishes a missing record from a lost state race
// after a zero-rows-affected compare-and-set.
func (s *SQLiteStore) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition result: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM settlements WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: settlement %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check settlement existence: %w", err)
	}
	return fmt.Errorf("%w: settlement %s", storage.ErrNotPending, id)
}

func (s *SQLiteStore) scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var state string
	var note sql.NullString
	if err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.ExpenseID,
		&settlement.DebtorID, &settlement.CreditorID, &settlement.Amount,
		&state, &note, &settlement.CreatedAt, &settlement.ExpiresAt,
		&settlement.CompletedAt, &settlement.TransferProof); err != nil {
		return nil, err
	}
	settlement.State = models.SettlementState(state)
	if note.Valid {
		settlement.Note = note.String
	}
	return settlement, nil
}
