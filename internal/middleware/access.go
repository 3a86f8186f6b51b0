package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
)

// RequirePermission lets the request through when the admin's token carries
// code.
func RequirePermission(code model.Permission) gin.HandlerFunc {
	return RequireAnyPermission(code)
}

// RequireAnyPermission lets the request through when the token carries at
// least one of codes. A 403 lists the accepted codes in fields.required.
func RequireAnyPermission(codes ...model.Permission) gin.HandlerFunc {
	accepted := make(map[string]struct{}, len(codes))
	names := make([]string, len(codes))
	for i, code := range codes {
		accepted[string(code)] = struct{}{}
		names[i] = string(code)
	}
	required := map[string]string{"required": strings.Join(names, "|")}

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		for _, p := range claims.Permissions {
			if _, ok := accepted[p]; ok {
				c.Next()
				return
			}
		}
		c.Abort()
		response.FailWithFields(c, http.StatusForbidden, response.ErrPermissionDenied, required)
	}
}

// SessionValidator checks a student's token against the active session.
type SessionValidator interface {
	ValidateStudentSession(ctx context.Context, studentID int, jti string) error
}

// CheckSingleDeviceSession rejects a student token whose JTI is no longer
// the active session: the student logged in elsewhere after an admin reset,
// or logged out. Admin tokens pass through.
func CheckSingleDeviceSession(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		switch {
		case claims == nil:
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		case claims.TokenType != service.TokenTypeStudent:
			c.Next()
			return
		}

		err := sessions.ValidateStudentSession(c.Request.Context(), claims.UserID, claims.ID)
		if errors.Is(err, service.ErrSessionInvalid) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}
		if err != nil {
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		c.Next()
	}
}
