package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/storage"
)

// GroupService manages groups and answers membership questions for the
// ledger core.
type GroupService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: store, logger: logger}
}

// CreateGroup creates a new group. Every listed member must already be
// registered, and the creator must be in the list.
func (s *GroupService) CreateGroup(ctx context.Context, caller, name string, members []string) (*models.Group, error) {
	s.logger.Info("CreateGroup request", "name", name, "members_count", len(members))

	if name == "" {
		return nil, fmt.Errorf("%w: group name required", ErrInvalidInput)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: group needs at least one member", ErrInvalidInput)
	}

	seen := make(map[string]bool, len(members))
	creatorListed := false
	for _, id := range members {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate member %s", ErrInvalidInput, id)
		}
		seen[id] = true
		if id == caller {
			creatorListed = true
		}
		if _, err := s.store.GetMember(ctx, id); err != nil {
			return nil, err
		}
	}
	if !creatorListed {
		return nil, fmt.Errorf("%w: creator must be a group member", ErrInvalidInput)
	}

	group := &models.Group{
		Name:    name,
		Members: members,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, err
	}

	s.logger.Info("Group created", "group_id", group.ID)
	return group, nil
}

// GetGroup retrieves a group. Members only.
func (s *GroupService) GetGroup(ctx context.Context, caller, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(caller) {
		return nil, fmt.Errorf("%w: member %s, group %s", ErrNotMember, caller, groupID)
	}
	return group, nil
}

// ListGroups retrieves the caller's groups.
func (s *GroupService) ListGroups(ctx context.Context, caller string) ([]*models.Group, error) {
	return s.store.ListGroupsForMember(ctx, caller)
}

// IsMember implements ledger.MembershipOracle.
func (s *GroupService) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return group.HasMember(memberID), nil
}
