package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

// RoleRepository handles role and permission data access.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// GetPermissionsByRoleID retrieves all permission codes for a given role.
func (r *RoleRepository) GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.code
		 FROM permissions p
		 JOIN role_permissions rp ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	permissions := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		permissions = append(permissions, code)
	}
	return permissions, rows.Err()
}

// GetRoleByID retrieves a role and its permissions by ID.
func (r *RoleRepository) GetRoleByID(ctx context.Context, id int) (*model.RoleWithPermissions, error) {
	role := &model.Role{ID: id}
	err := r.pool.QueryRow(ctx, "SELECT name, created_at FROM roles WHERE id = $1", id).Scan(&role.Name, &role.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	permissions, err := r.GetPermissionsByRoleID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.RoleWithPermissions{
		Role:        role,
		Permissions: permissions,
	}, nil
}

// ListRolesWithPermissions retrieves all roles with their permissions in one query.
func (r *RoleRepository) ListRolesWithPermissions(ctx context.Context) ([]model.RoleWithPermissions, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.created_at, COALESCE(array_agg(p.code ORDER BY p.code) FILTER (WHERE p.code IS NOT NULL), '{}')
		 FROM roles r
		 LEFT JOIN role_permissions rp ON rp.role_id = r.id
		 LEFT JOIN permissions p ON p.id = rp.permission_id
		 GROUP BY r.id, r.name, r.created_at
		 ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []model.RoleWithPermissions{}
	for rows.Next() {
		role := &model.Role{}
		var permissions []string
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &permissions); err != nil {
			return nil, err
		}
		roles = append(roles, model.RoleWithPermissions{Role: role, Permissions: permissions})
	}
	return roles, rows.Err()
}

// CreateRole inserts a role with its permissions and returns its ID.
func (r *RoleRepository) CreateRole(ctx context.Context, name string, permissionCodes []string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int
	if err := tx.QueryRow(ctx, "INSERT INTO roles (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	if err := assignPermissions(ctx, tx, id, permissionCodes); err != nil {
		return 0, err
	}
	return id, tx.Commit(ctx)
}

// UpdateRole renames a role and replaces its permissions.
func (r *RoleRepository) UpdateRole(ctx context.Context, id int, name string, permissionCodes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE roles SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", id); err != nil {
		return err
	}
	if err := assignPermissions(ctx, tx, id, permissionCodes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteRole removes a role. Roles still held by users are refused by the
// foreign key.
func (r *RoleRepository) DeleteRole(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// assignPermissions resolves codes to ids and copies them into role_permissions.
func assignPermissions(ctx context.Context, tx pgx.Tx, roleID int, permissionCodes []string) error {
	if len(permissionCodes) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx, "SELECT id FROM permissions WHERE code = ANY($1)", permissionCodes)
	if err != nil {
		return err
	}
	var permissionIDs []int
	for rows.Next() {
		var pid int
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return err
		}
		permissionIDs = append(permissionIDs, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"role_permissions"},
		[]string{"role_id", "permission_id"},
		pgx.CopyFromSlice(len(permissionIDs), func(i int) ([]interface{}, error) {
			return []interface{}{roleID, permissionIDs[i]}, nil
		}),
	)
	return err
}

// SyncPermissions registers every known permission code and grants all of
// them to roleID. It returns how many grants were added.
func (r *RoleRepository) SyncPermissions(ctx context.Context, roleID int, codes []string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO permissions (code) SELECT UNNEST($1::text[]) ON CONFLICT (code) DO NOTHING`, codes); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT $1, id FROM permissions WHERE code = ANY($2)
		 ON CONFLICT DO NOTHING`, roleID, codes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), tx.Commit(ctx)
}
