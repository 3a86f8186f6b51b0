package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// UserStore is the persistence UserService needs.
type UserStore interface {
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	UpdateProfile(ctx context.Context, p *model.Profile) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetActive(ctx context.Context, id int, active bool) error
}

type roleGetter interface {
	GetRoleByID(ctx context.Context, id int) (*model.RoleWithPermissions, error)
}

type passwordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) error
	ResetStudentSession(ctx context.Context, studentID int) error
}

// UserService manages admin and student accounts.
type UserService struct {
	userRepo   UserStore
	roleRepo   roleGetter
	schoolRepo activeChecker
	levelRepo  activeChecker
	auth       passwordHasher
	log        zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo UserStore,
	roleRepo roleGetter,
	schoolRepo activeChecker,
	levelRepo activeChecker,
	auth passwordHasher,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		schoolRepo: schoolRepo,
		levelRepo:  levelRepo,
		auth:       auth,
		log:        log.With().Str("component", "user_service").Logger(),
	}
}

// List retrieves a filtered page of users.
func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]model.User, *response.Pagination, error) {
	switch model.UserKind(f.Kind) {
	case "", model.UserAdmin, model.UserStudent:
	default:
		return nil, nil, ErrInvalidFilter
	}
	normalizeQuery(&f.ListQuery)
	users, total, err := s.userRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return users, response.NewPagination(f.Page, f.PerPage, total), nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Create hashes the password and stores the user with its profile.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	roleID, err := s.checkAccount(ctx, req.Kind, req.RoleID, req.Profile)
	if err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Kind:         req.Kind,
		RoleID:       roleID,
		IsActive:     true,
		Profile:      profileFrom(req.Kind, req.Profile),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Int("user_id", user.ID).Str("kind", string(user.Kind)).Msg("User created")
	return s.userRepo.GetByID(ctx, user.ID)
}

// Update changes account fields and the profile.
func (s *UserService) Update(ctx context.Context, id int, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roleID, err := s.checkAccount(ctx, req.Kind, req.RoleID, req.Profile)
	if err != nil {
		return nil, err
	}

	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Kind = req.Kind
	user.RoleID = roleID
	user.Profile = profileFrom(req.Kind, req.Profile)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// checkAccount verifies the role for admins and the profile placement for
// students. It returns the role id to store.
func (s *UserService) checkAccount(ctx context.Context, kind model.UserKind, roleID *int, p model.ProfileRequest) (*int, error) {
	if kind == model.UserAdmin {
		if roleID == nil {
			return nil, ErrInvalidParent
		}
		if _, err := s.roleRepo.GetRoleByID(ctx, *roleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidParent
			}
			return nil, err
		}
		return roleID, nil
	}

	if p.ClassLevelID == nil {
		return nil, ErrInvalidParent
	}
	if err := requireActive(ctx, s.levelRepo, *p.ClassLevelID); err != nil {
		return nil, err
	}
	if p.SchoolID != nil {
		if err := requireActive(ctx, s.schoolRepo, *p.SchoolID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func profileFrom(kind model.UserKind, p model.ProfileRequest) *model.Profile {
	profile := &model.Profile{
		FullName:   strings.TrimSpace(p.FullName),
		Phone:      p.Phone,
		RollNumber: p.RollNumber,
		AvatarURL:  p.AvatarURL,
		UpdatedAt:  time.Now(),
	}
	if kind == model.UserStudent {
		profile.SchoolID = p.SchoolID
		profile.ClassLevelID = p.ClassLevelID
	}
	return profile
}

// Delete deactivates a user and ends any student session.
func (s *UserService) Delete(ctx context.Context, id int) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetActive(ctx, id, false); err != nil {
		return err
	}
	if user.Kind == model.UserStudent {
		if err := s.auth.ResetStudentSession(ctx, id); err != nil {
			s.log.Warn().Err(err).Int("user_id", id).Msg("Failed to clear session")
		}
	}
	return nil
}

func (s *UserService) Restore(ctx context.Context, id int) error {
	return s.userRepo.SetActive(ctx, id, true)
}

// ResetPassword sets a new password chosen by an administrator.
func (s *UserService) ResetPassword(ctx context.Context, id int, password string) error {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, id, hash)
}

// UpdateOwnProfile changes the personal fields a user may edit themselves.
func (s *UserService) UpdateOwnProfile(ctx context.Context, id int, req model.SelfProfileRequest) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := &model.Profile{UserID: id}
	if user.Profile != nil {
		*profile = *user.Profile
	}
	profile.FullName = strings.TrimSpace(req.FullName)
	profile.Phone = req.Phone
	profile.AvatarURL = req.AvatarURL
	profile.UpdatedAt = time.Now()

	if err := s.userRepo.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// ChangePassword replaces the user's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id int, req model.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return err
	}
	return s.ResetPassword(ctx, id, req.NewPassword)
}
