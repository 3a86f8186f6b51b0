package service

import (
	"errors"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/scoring"
)

// Repository sentinels pass through services unchanged.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrDuplicate        = repository.ErrDuplicate
	ErrDependencyExists = repository.ErrDependencyExists
)

// Domain Errors
var (
	ErrInvalidParent = errors.New("parent record is missing or inactive")

	ErrInvalidStructure = errors.New("exam structure is invalid")

	ErrExamNotDraft          = errors.New("exam is not a draft")
	ErrExamNotEditable       = errors.New("exam can no longer be edited")
	ErrExamLive              = errors.New("a live exam cannot be deleted")
	ErrExamNotLive           = errors.New("exam is not open")
	ErrInvalidSchedule       = errors.New("exam schedule is invalid")
	ErrInsufficientQuestions = errors.New("not enough questions for a section")
	ErrPaperNotGenerated     = errors.New("exam paper has not been generated")

	ErrNotEligible        = errors.New("exam is not available to this student")
	ErrAttemptClosed      = errors.New("attempt is no longer in progress")
	ErrQuestionNotInPaper = errors.New("question is not part of this exam")

	ErrRoleImmutable     = errors.New("the super admin role cannot be changed")
	ErrUnknownPermission = errors.New("unknown permission code")

	ErrExtractionNotReady = errors.New("extraction job is not in the required state")
	ErrNothingToImport    = errors.New("nothing to import")

	ErrInvalidFilter = errors.New("invalid filter value")
	// ErrInvalidQuestion wraps answer-key problems found by the scoring rules.
	ErrInvalidQuestion = scoring.ErrInvalidQuestion
)

// normalizeQuery applies the list defaults shared by every service.
func normalizeQuery(q *model.ListQuery) {
	q.Page, q.PerPage = response.NormalizePage(q.Page, q.PerPage)
	q.Status = model.ParseStatusFilter(string(q.Status))
	q.Search = strings.TrimSpace(q.Search)
}
