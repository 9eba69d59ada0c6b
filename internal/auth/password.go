package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid member id or credential")
	ErrWeakCredential     = errors.New("credential must be at least 8 characters")
	ErrMemberExists       = errors.New("member id already registered")
)

// MemberStorage defines the persistence operations the authenticator needs.
type MemberStorage interface {
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, id string) (*models.Member, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage MemberStorage
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage MemberStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
	}
}

// ValidateCredential checks if the credential meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakCredential
	}
	return nil
}

// Register creates a new member account with a hashed credential.
func (a *PasswordAuthenticator) Register(ctx context.Context, memberID, credential string) (*models.Member, error) {
	if memberID == "" {
		return nil, ErrInvalidCredentials
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	member := models.NewMember(memberID, string(hash))
	if err := a.storage.CreateMember(ctx, member); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrMemberExists
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	return member, nil
}

// Authenticate verifies the member id and credential, returning the member
// if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, memberID, credential string) (*models.Member, error) {
	member, err := a.storage.GetMember(ctx, memberID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.CredentialHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return member, nil
}
