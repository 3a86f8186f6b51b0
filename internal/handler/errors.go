package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/ai"
	"github.com/stemsi/exstem-admin/internal/middleware"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
	"github.com/stemsi/exstem-admin/internal/validator"
)

type errorMapping struct {
	target error
	status int
	code   response.ErrCode
	// detail copies the wrapped message into error.fields.detail.
	detail bool
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound, false},
	{service.ErrDuplicate, http.StatusConflict, response.ErrConflict, false},
	{service.ErrDependencyExists, http.StatusConflict, response.ErrDependencyExists, false},
	{service.ErrInvalidParent, http.StatusBadRequest, response.ErrInvalidParent, false},
	{service.ErrInvalidFilter, http.StatusBadRequest, response.ErrInvalidFilter, true},
	{service.ErrInvalidSetting, http.StatusBadRequest, response.ErrValidation, true},
	{service.ErrInvalidQuestion, http.StatusBadRequest, response.ErrInvalidQuestion, true},
	{service.ErrInvalidStructure, http.StatusBadRequest, response.ErrInvalidStructure, true},

	{service.ErrExamNotDraft, http.StatusConflict, response.ErrExamNotDraft, false},
	{service.ErrExamNotEditable, http.StatusConflict, response.ErrExamNotEditable, false},
	{service.ErrExamLive, http.StatusConflict, response.ErrExamLive, false},
	{service.ErrExamNotLive, http.StatusConflict, response.ErrExamNotLive, false},
	{service.ErrInvalidSchedule, http.StatusBadRequest, response.ErrInvalidSchedule, false},
	{service.ErrInsufficientQuestions, http.StatusUnprocessableEntity, response.ErrInsufficientQuestions, true},
	{service.ErrPaperNotGenerated, http.StatusConflict, response.ErrPaperNotGenerated, false},
	{service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible, false},
	{service.ErrAttemptClosed, http.StatusConflict, response.ErrAttemptClosed, false},
	{service.ErrQuestionNotInPaper, http.StatusBadRequest, response.ErrQuestionNotInPaper, false},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials, false},
	{service.ErrSessionAlreadyActive, http.StatusConflict, response.ErrSessionActive, false},
	{service.ErrSessionInvalid, http.StatusUnauthorized, response.ErrSessionInvalidated, false},
	{service.ErrInvalidToken, http.StatusUnauthorized, response.ErrTokenInvalid, false},
	{service.ErrRoleImmutable, http.StatusForbidden, response.ErrRoleImmutable, false},
	{service.ErrUnknownPermission, http.StatusBadRequest, response.ErrUnknownPermission, true},

	{service.ErrExtractionNotReady, http.StatusConflict, response.ErrExtractionNotReady, false},
	{service.ErrNothingToImport, http.StatusBadRequest, response.ErrNothingToImport, false},
	{ai.ErrProviderUnavailable, http.StatusBadRequest, response.ErrProviderUnavailable, false},

	{service.ErrUnsupportedFileType, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile, false},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge, false},
}

// fail writes the envelope for a service error. Unmapped errors are attached
// to the context for the request logger and reported as 500.
func fail(c *gin.Context, err error) {
	m, ok := lookupError(err)
	if !ok {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if m.detail && err.Error() != m.target.Error() {
		response.FailWithFields(c, m.status, m.code, map[string]string{"detail": err.Error()})
		return
	}
	response.Fail(c, m.status, m.code)
}

func lookupError(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func paramInt(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if fields := validator.Bind(c, dst); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if fields := validator.BindQuery(c, dst); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return false
	}
	return true
}

func bindForm(c *gin.Context, dst interface{}) bool {
	if fields := validator.BindForm(c, dst); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return false
	}
	return true
}

// claimsOrFail returns the caller's claims, failing the request when the auth
// middleware did not run.
func claimsOrFail(c *gin.Context) (*service.Claims, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	return claims, true
}
