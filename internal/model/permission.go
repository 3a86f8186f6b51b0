package model

import (
	"strings"
	"time"
)

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMediaUpload allows uploading media files.
	PermissionMediaUpload Permission = "media:upload"

	PermissionSchoolsRead  Permission = "schools:read"
	PermissionSchoolsWrite Permission = "schools:write"

	// PermissionCatalogRead covers class levels, subjects and chapters.
	PermissionCatalogRead  Permission = "catalog:read"
	PermissionCatalogWrite Permission = "catalog:write"

	PermissionQuestionsRead  Permission = "questions:read"
	PermissionQuestionsWrite Permission = "questions:write"

	PermissionQBanksRead  Permission = "qbanks:read"
	PermissionQBanksWrite Permission = "qbanks:write"

	PermissionStructuresRead  Permission = "structures:read"
	PermissionStructuresWrite Permission = "structures:write"

	PermissionExamsRead    Permission = "exams:read"
	PermissionExamsWrite   Permission = "exams:write"
	PermissionExamsPublish Permission = "exams:publish"

	// PermissionAttemptsRead allows reviewing attempts and exporting results.
	PermissionAttemptsRead Permission = "attempts:read"
	// PermissionAttemptsManage allows resetting attempts and student sessions.
	PermissionAttemptsManage Permission = "attempts:manage"

	PermissionUsersRead  Permission = "users:read"
	PermissionUsersWrite Permission = "users:write"

	PermissionRolesRead  Permission = "roles:read"
	PermissionRolesWrite Permission = "roles:write"

	PermissionSettingsRead  Permission = "settings:read"
	PermissionSettingsWrite Permission = "settings:write"

	// PermissionAIExtract allows uploading PDFs for question extraction.
	PermissionAIExtract Permission = "ai:extract"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionSchoolsRead,
	PermissionSchoolsWrite,
	PermissionCatalogRead,
	PermissionCatalogWrite,
	PermissionQuestionsRead,
	PermissionQuestionsWrite,
	PermissionQBanksRead,
	PermissionQBanksWrite,
	PermissionStructuresRead,
	PermissionStructuresWrite,
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionExamsPublish,
	PermissionAttemptsRead,
	PermissionAttemptsManage,
	PermissionUsersRead,
	PermissionUsersWrite,
	PermissionRolesRead,
	PermissionRolesWrite,
	PermissionSettingsRead,
	PermissionSettingsWrite,
	PermissionAIExtract,
}

// ValidPermission reports whether code is a known permission.
func ValidPermission(code string) bool {
	for _, p := range AllPermissions {
		if string(p) == code {
			return true
		}
	}
	return false
}

// Resource is the part of a code before the colon ("exams" for
// "exams:write").
func (p Permission) Resource() string {
	s := string(p)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// PermissionGroups indexes AllPermissions by resource for role editors.
func PermissionGroups() map[string][]string {
	groups := make(map[string][]string)
	for _, p := range AllPermissions {
		groups[p.Resource()] = append(groups[p.Resource()], string(p))
	}
	return groups
}

// SuperAdminRoleID is seeded by the first migration. The role always holds
// every permission and cannot be edited or deleted.
const SuperAdminRoleID = 1

type Role struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Role) Immutable() bool { return r.ID == SuperAdminRoleID }

type RoleWithPermissions struct {
	*Role
	Permissions []string `json:"permissions"`
}

type RoleRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=100"`
	Permissions []string `json:"permissions" binding:"omitempty,max=100,dive,required"`
}
