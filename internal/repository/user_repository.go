package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stemsi/exstem-admin/internal/model"
)

// UserRepository handles users and their profiles.
type UserRepository struct {
	gormStore[model.User]
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{gormStore[model.User]{db: db}}
}

// List returns one page of users with profiles, ordered by full name.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.User{}).
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Scopes(
			statusScope("users", f.Status),
			searchScope(f.Search, "users.email", "profiles.full_name", "profiles.roll_number"),
		)
	if f.Kind != "" {
		tx = tx.Where("users.kind = ?", f.Kind)
	}
	if f.RoleID > 0 {
		tx = tx.Where("users.role_id = ?", f.RoleID)
	}
	if f.SchoolID > 0 {
		tx = tx.Where("profiles.school_id = ?", f.SchoolID)
	}
	if f.ClassLevelID > 0 {
		tx = tx.Where("profiles.class_level_id = ?", f.ClassLevelID)
	}
	return r.pageSelect(tx, f.ListQuery, "profiles.full_name ASC, users.id ASC", "users.*", "Profile")
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	return r.get(ctx, id, "Profile")
}

// GetByEmail looks up a user for login. Inactive users are returned too;
// callers decide what to do with them.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Preload("Profile").
		Where("LOWER(email) = LOWER(?)", email).
		First(&u).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// Create inserts the user and its profile atomically.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return mapError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(u).Error
	}))
}

// Update writes account fields and upserts the profile.
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	return mapError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(u).Omit("Profile").
			Select("email", "kind", "role_id", "updated_at").
			Updates(u)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if u.Profile == nil {
			return nil
		}
		u.Profile.UserID = u.ID
		return upsertProfile(tx, u.Profile)
	}))
}

// UpdateProfile upserts only the profile row.
func (r *UserRepository) UpdateProfile(ctx context.Context, p *model.Profile) error {
	return mapError(upsertProfile(r.db.WithContext(ctx), p))
}

func upsertProfile(tx *gorm.DB, p *model.Profile) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "phone", "school_id", "class_level_id", "roll_number", "avatar_url", "updated_at"}),
	}).Create(p).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	return mapError(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error)
}

func (r *UserRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

// CountByRole counts admins that still hold roleID.
func (r *UserRepository) CountByRole(ctx context.Context, roleID int) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("role_id = ?", roleID).Count(&n).Error
	return int(n), mapError(err)
}
