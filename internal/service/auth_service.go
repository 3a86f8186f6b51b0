package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another session is already active, please contact admin to reset")
	ErrSessionInvalid       = errors.New("session invalidated")
	ErrInvalidToken         = errors.New("invalid token")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType    TokenType `json:"token_type"`
	UserID       int       `json:"user_id"`
	ClassLevelID int       `json:"class_level_id,omitempty"` // Student only
	SchoolID     int       `json:"school_id,omitempty"`      // Student only
	RoleID       int       `json:"role_id,omitempty"`        // Admin only
	Permissions  []string  `json:"permissions,omitempty"`    // Admin only
}

type loginStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
}

type permissionGetter interface {
	GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error)
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg   *config.Config
	rdb   *redis.Client
	users loginStore
	roles permissionGetter
	log   zerolog.Logger
	now   func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, users loginStore, roles permissionGetter, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:   cfg,
		rdb:   rdb,
		users: users,
		roles: roles,
		log:   log.With().Str("component", "auth_service").Logger(),
		now:   time.Now,
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login authenticates a user of the given kind and issues a token. Inactive
// accounts and accounts of the other kind are rejected like a bad password.
func (s *AuthService) Login(ctx context.Context, kind model.UserKind, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.Kind != kind || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := s.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	resp := &model.LoginResponse{User: user}
	var expires time.Time
	switch kind {
	case model.UserAdmin:
		if user.RoleID == nil {
			return nil, ErrInvalidCredentials
		}
		perms, err := s.roles.GetPermissionsByRoleID(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get permissions: %w", err)
		}
		resp.Permissions = perms
		resp.Token, expires, err = s.GenerateAdminToken(user.ID, *user.RoleID, perms)
		if err != nil {
			return nil, err
		}
	default:
		resp.Token, expires, err = s.GenerateStudentToken(ctx, user)
		if err != nil {
			return nil, err
		}
	}
	resp.ExpiresAt = expires.Unix()

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Int("user_id", user.ID).Msg("Failed to record last login")
	}
	s.log.Info().Int("user_id", user.ID).Str("kind", string(kind)).Msg("User logged in")
	return resp, nil
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) registered(userID int) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
	}
}

// GenerateStudentToken creates a JWT for a student and registers the session in Redis.
// Returns an error if a session already exists (new logins are rejected).
func (s *AuthService) GenerateStudentToken(ctx context.Context, student *model.User) (string, time.Time, error) {
	claims := Claims{
		RegisteredClaims: s.registered(student.ID),
		TokenType:        TokenTypeStudent,
		UserID:           student.ID,
		ClassLevelID:     student.ClassLevelID(),
		SchoolID:         student.SchoolID(),
	}
	signed, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	// SETNX keeps the first device's session when two logins race.
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.StudentSessionKey(student.ID), claims.ID, s.cfg.JWTExpiry).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return "", time.Time{}, ErrSessionAlreadyActive
	}
	return signed, claims.ExpiresAt.Time, nil
}

// GenerateAdminToken creates a JWT for an admin with permissions embedded.
func (s *AuthService) GenerateAdminToken(adminID, roleID int, permissions []string) (string, time.Time, error) {
	claims := Claims{
		RegisteredClaims: s.registered(adminID),
		TokenType:        TokenTypeAdmin,
		UserID:           adminID,
		RoleID:           roleID,
		Permissions:      permissions,
	}
	signed, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateStudentSession checks that the token's JTI matches the active session in Redis.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalid
	}
	return nil
}

// Logout ends a student's session. Admin tokens are stateless and simply
// expire.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims.TokenType != TokenTypeStudent {
		return nil
	}
	if err := s.ValidateStudentSession(ctx, claims.UserID, claims.ID); err != nil {
		return err
	}
	return s.ResetStudentSession(ctx, claims.UserID)
}

// ResetStudentSession removes a student's session from Redis, allowing a new login.
func (s *AuthService) ResetStudentSession(ctx context.Context, studentID int) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(studentID)).Err()
}
