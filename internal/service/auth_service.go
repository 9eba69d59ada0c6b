package service

import (
	"context"
	"log/slog"

	"github.com/splitstack/tally/internal/auth"
	"github.com/splitstack/tally/internal/models"
)

// AuthService registers members and issues session tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Register creates a new member account and returns it with a session token.
func (s *AuthService) Register(ctx context.Context, memberID, credential string) (*models.Member, string, error) {
	s.logger.Info("Register request", "member_id", memberID)

	member, err := s.authenticator.Register(ctx, memberID, credential)
	if err != nil {
		s.logger.Error("Registration failed", "member_id", memberID, "error", err)
		return nil, "", err
	}

	token, err := s.jwtManager.Generate(member)
	if err != nil {
		s.logger.Error("Failed to generate token", "member_id", member.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("Member registered", "member_id", member.ID)
	return member, token, nil
}

// Login authenticates a member and returns a session token.
func (s *AuthService) Login(ctx context.Context, memberID, credential string) (*models.Member, string, error) {
	s.logger.Info("Login request", "member_id", memberID)

	if memberID == "" || credential == "" {
		return nil, "", auth.ErrInvalidCredentials
	}

	member, err := s.authenticator.Authenticate(ctx, memberID, credential)
	if err != nil {
		s.logger.Warn("Login failed", "member_id", memberID, "error", err)
		return nil, "", auth.ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(member)
	if err != nil {
		s.logger.Error("Failed to generate token", "member_id", member.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("Member logged in", "member_id", member.ID)
	return member, token, nil
}
