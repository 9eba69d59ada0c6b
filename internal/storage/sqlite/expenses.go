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

// CreateExpense persists an expense and its splits in one transaction.
// Split rows record their position so the participant order, which decides
// who absorbed the remainder units, survives a round trip.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var note interface{}
	if expense.Note != "" {
		note = expense.Note
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, payer_id, amount, note, settled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Amount,
		note, boolToInt(expense.Settled), expense.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: expense %s", storage.ErrDuplicate, expense.ID)
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, split := range expense.Splits {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, member_id, position, owed) VALUES (?, ?, ?, ?)",
			expense.ID, split.MemberID, i, split.Owed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetExpense retrieves an expense with its splits and participant order.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	expense, err := s.scanExpense(s.db.QueryRowContext(ctx,
		"SELECT id, group_id, payer_id, amount, note, settled, created_at FROM expenses WHERE id = ?",
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.attachSplits(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByGroup retrieves a group's expenses oldest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, payer_id, amount, note, settled, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := s.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, expense := range expenses {
		if err := s.attachSplits(ctx, expense); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// MarkExpenseSettled flips the expense's settled marker.
func (s *SQLiteStore) MarkExpenseSettled(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE expenses SET settled = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark expense settled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: expense %s", storage.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var note sql.NullString
	var settled int
	if err := row.Scan(&expense.ID, &expense.GroupID, &expense.PayerID,
		&expense.Amount, &note, &settled, &expense.CreatedAt); err != nil {
		return nil, err
	}
	if note.Valid {
		expense.Note = note.String
	}
	expense.Settled = settled != 0
	return expense, nil
}

// attachSplits loads the expense's splits in stored order and rebuilds the
// participant list from them.
func (s *SQLiteStore) attachSplits(ctx context.Context, expense *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, owed FROM expense_splits WHERE expense_id = ? ORDER BY position",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		split := models.Split{ExpenseID: expense.ID}
		if err := rows.Scan(&split.MemberID, &split.Owed); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		expense.Splits = append(expense.Splits, split)
		expense.Participants = append(expense.Participants, split.MemberID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
