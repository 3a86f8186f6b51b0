package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
)

// RoleStore is the persistence RoleService needs.
type RoleStore interface {
	ListRolesWithPermissions(ctx context.Context) ([]model.RoleWithPermissions, error)
	GetRoleByID(ctx context.Context, id int) (*model.RoleWithPermissions, error)
	CreateRole(ctx context.Context, name string, permissionCodes []string) (int, error)
	UpdateRole(ctx context.Context, id int, name string, permissionCodes []string) error
	DeleteRole(ctx context.Context, id int) error
}

// RoleService handles business logic for admin roles.
type RoleService struct {
	roleRepo RoleStore
}

// NewRoleService creates a new RoleService.
func NewRoleService(roleRepo RoleStore) *RoleService {
	return &RoleService{roleRepo: roleRepo}
}

// ListRoles retrieves all roles with their permissions.
func (s *RoleService) ListRoles(ctx context.Context) ([]model.RoleWithPermissions, error) {
	return s.roleRepo.ListRolesWithPermissions(ctx)
}

// GetRoleByID retrieves a specific role and its permissions.
func (s *RoleService) GetRoleByID(ctx context.Context, id int) (*model.RoleWithPermissions, error) {
	return s.roleRepo.GetRoleByID(ctx, id)
}

// CreateRole creates a new role and assigns its permissions in one transaction.
func (s *RoleService) CreateRole(ctx context.Context, req model.RoleRequest) (*model.RoleWithPermissions, error) {
	codes, err := checkPermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	id, err := s.roleRepo.CreateRole(ctx, strings.TrimSpace(req.Name), codes)
	if err != nil {
		return nil, err
	}
	return s.GetRoleByID(ctx, id)
}

// UpdateRole replaces a role's name and permissions.
func (s *RoleService) UpdateRole(ctx context.Context, id int, req model.RoleRequest) (*model.RoleWithPermissions, error) {
	if (model.Role{ID: id}).Immutable() {
		return nil, ErrRoleImmutable
	}
	codes, err := checkPermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	if err := s.roleRepo.UpdateRole(ctx, id, strings.TrimSpace(req.Name), codes); err != nil {
		return nil, err
	}
	return s.GetRoleByID(ctx, id)
}

// DeleteRole deletes a role that no user holds.
func (s *RoleService) DeleteRole(ctx context.Context, id int) error {
	if (model.Role{ID: id}).Immutable() {
		return ErrRoleImmutable
	}
	return s.roleRepo.DeleteRole(ctx, id)
}

// GetAllPermissions retrieves all available system permission codes.
func (s *RoleService) GetAllPermissions() []string {
	perms := make([]string, len(model.AllPermissions))
	for i, p := range model.AllPermissions {
		perms[i] = string(p)
	}
	return perms
}

// checkPermissions rejects unknown codes and drops duplicates.
func checkPermissions(codes []string) ([]string, error) {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if !model.ValidPermission(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
