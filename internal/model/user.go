package model

import "time"

// UserKind separates staff from students.
type UserKind string

const (
	UserAdmin   UserKind = "admin"
	UserStudent UserKind = "student"
)

// User is an account. Admin accounts carry a role; students carry a class
// level and school on their profile.
type User struct {
	ID           int        `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Kind         UserKind   `json:"kind" gorm:"size:20;not null;index"`
	RoleID       *int       `json:"role_id,omitempty" gorm:"index"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Profile      *Profile   `json:"profile,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DisplayName prefers the profile's full name over the email.
func (u *User) DisplayName() string {
	if u.Profile != nil && u.Profile.FullName != "" {
		return u.Profile.FullName
	}
	return u.Email
}

// ClassLevelID returns the profile's class level, or 0.
func (u *User) ClassLevelID() int {
	if u.Profile == nil || u.Profile.ClassLevelID == nil {
		return 0
	}
	return *u.Profile.ClassLevelID
}

// SchoolID returns the profile's school, or 0.
func (u *User) SchoolID() int {
	if u.Profile == nil || u.Profile.SchoolID == nil {
		return 0
	}
	return *u.Profile.SchoolID
}

// Profile holds personal details for a user.
type Profile struct {
	UserID       int       `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	FullName     string    `json:"full_name" gorm:"size:200;not null"`
	Phone        string    `json:"phone" gorm:"size:50"`
	SchoolID     *int      `json:"school_id,omitempty" gorm:"index"`
	ClassLevelID *int      `json:"class_level_id,omitempty" gorm:"index"`
	RollNumber   string    `json:"roll_number" gorm:"size:50"`
	AvatarURL    string    `json:"avatar_url" gorm:"size:500"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the short form embedded in other payloads.
type UserSummary struct {
	ID         int    `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	RollNumber string `json:"roll_number,omitempty"`
}

// Summary builds a UserSummary.
func (u *User) Summary() *UserSummary {
	s := &UserSummary{ID: u.ID, Email: u.Email, FullName: u.DisplayName()}
	if u.Profile != nil {
		s.RollNumber = u.Profile.RollNumber
	}
	return s
}

type ProfileRequest struct {
	FullName     string `json:"full_name" binding:"required,min=2,max=200"`
	Phone        string `json:"phone" binding:"omitempty,max=50"`
	SchoolID     *int   `json:"school_id" binding:"omitempty,min=1"`
	ClassLevelID *int   `json:"class_level_id" binding:"omitempty,min=1"`
	RollNumber   string `json:"roll_number" binding:"omitempty,max=50"`
	AvatarURL    string `json:"avatar_url" binding:"omitempty,max=500"`
}

type CreateUserRequest struct {
	Email    string         `json:"email" binding:"required,email,max=255"`
	Password string         `json:"password" binding:"required,min=8,max=128"`
	Kind     UserKind       `json:"kind" binding:"required,oneof=admin student"`
	RoleID   *int           `json:"role_id" binding:"omitempty,min=1"`
	Profile  ProfileRequest `json:"profile" binding:"required"`
}

type UpdateUserRequest struct {
	Email   string         `json:"email" binding:"required,email,max=255"`
	Kind    UserKind       `json:"kind" binding:"required,oneof=admin student"`
	RoleID  *int           `json:"role_id" binding:"omitempty,min=1"`
	Profile ProfileRequest `json:"profile" binding:"required"`
}

// SelfProfileRequest is what a user may change on their own profile.
type SelfProfileRequest struct {
	FullName  string `json:"full_name" binding:"required,min=2,max=200"`
	Phone     string `json:"phone" binding:"omitempty,max=50"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,max=500"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128,nefield=CurrentPassword"`
}

// UserFilter narrows the user list.
type UserFilter struct {
	ListQuery
	Kind         string `form:"kind"`
	RoleID       int    `form:"role_id"`
	SchoolID     int    `form:"school_id"`
	ClassLevelID int    `form:"class_level_id"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token       string   `json:"token"`
	ExpiresAt   int64    `json:"expires_at"`
	User        *User    `json:"user"`
	Permissions []string `json:"permissions,omitempty"`
}
