package services

import (
	"context"
	"strings"

	"github.com/libris-lms/apiserver/types"
)

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Role, int, error)
	Get(ctx context.Context, id int) (types.Role, error)
	Create(ctx context.Context, role types.Role, actorID int) (types.Role, error)
	Update(ctx context.Context, role types.Role, actorID int) (types.Role, error)
	Delete(ctx context.Context, id int) error
}

// RoleService encapsulates role use-cases. Every operation is admin only.
type RoleService struct {
	repo RoleRepository
}

func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

func (s *RoleService) List(ctx context.Context, actor types.User, offset, limit int) ([]types.Role, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *RoleService) Get(ctx context.Context, actor types.User, id int) (types.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Role{}, err
	}
	role, err := s.repo.Get(ctx, id)
	return role, translate(err, "role")
}

func (s *RoleService) Create(ctx context.Context, actor types.User, role types.Role) (types.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Role{}, err
	}
	role.Name = strings.TrimSpace(role.Name)
	if err := validateName(role.Name, 255); err != nil {
		return types.Role{}, err
	}
	created, err := s.repo.Create(ctx, role, actor.ID)
	return created, translate(err, "role")
}

func (s *RoleService) Update(ctx context.Context, actor types.User, role types.Role) (types.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Role{}, err
	}
	role.Name = strings.TrimSpace(role.Name)
	if err := validateName(role.Name, 255); err != nil {
		return types.Role{}, err
	}
	updated, err := s.repo.Update(ctx, role, actor.ID)
	return updated, translate(err, "role")
}

// Delete removes a role. Users holding it are left without a role.
func (s *RoleService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return translate(s.repo.Delete(ctx, id), "role")
}

func validateName(name string, maxLen int) error {
	if name == "" {
		return validationError("name is required")
	}
	if len(name) > maxLen {
		return validationError("name must be at most %d characters", maxLen)
	}
	return nil
}
