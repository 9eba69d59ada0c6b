package auth

import (
	"context"

	"github.com/splitstack/tally/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password,
// passkeys, OAuth, etc.) without changing the service layer code.
type Authenticator interface {
	// Register creates a new member account with the given id and credential.
	// The credential format depends on the implementation.
	Register(ctx context.Context, memberID, credential string) (*models.Member, error)

	// Authenticate verifies the member's credential and returns the member
	// if successful.
	Authenticate(ctx context.Context, memberID, credential string) (*models.Member, error)

	// ValidateCredential checks if the credential meets the implementation's
	// requirements.
	ValidateCredential(credential string) error
}
