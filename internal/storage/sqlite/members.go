package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/storage"
)

// CreateMember inserts a new member into the database.
func (s *SQLiteStore) CreateMember(ctx context.Context, member *models.Member) error {
	if member.CreatedAt == 0 {
		member.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO members (id, credential_hash, created_at) VALUES (?, ?, ?)",
		member.ID, member.CredentialHash, member.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: member %s", storage.ErrDuplicate, member.ID)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// GetMember retrieves a member by id.
func (s *SQLiteStore) GetMember(ctx context.Context, id string) (*models.Member, error) {
	member := &models.Member{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, credential_hash, created_at FROM members WHERE id = ?",
		id,
	).Scan(&member.ID, &member.CredentialHash, &member.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// isUniqueViolation reports whether the driver error is a primary key or
// unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
