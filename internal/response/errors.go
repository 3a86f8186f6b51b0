package response

// ErrCode is a typed error code enum for consistent API error identification.
// Each code doubles as the message ID in the locale catalogs.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAccountInactive    ErrCode = "ACCOUNT_INACTIVE"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrRoleImmutable     ErrCode = "ROLE_IMMUTABLE"
	ErrUnknownPermission ErrCode = "UNKNOWN_PERMISSION"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrInvalidID        ErrCode = "INVALID_ID"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"
	ErrInvalidParent    ErrCode = "INVALID_PARENT"
	ErrInvalidFilter    ErrCode = "INVALID_FILTER"
	ErrInvalidQuestion  ErrCode = "INVALID_QUESTION"
	ErrInvalidStructure ErrCode = "INVALID_STRUCTURE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"
	ErrActionForbidden  ErrCode = "ACTION_FORBIDDEN"

	// ─── Exams & attempts ──────────────────────────────────────────────
	ErrExamNotDraft          ErrCode = "EXAM_NOT_DRAFT"
	ErrExamNotEditable       ErrCode = "EXAM_NOT_EDITABLE"
	ErrExamNotLive           ErrCode = "EXAM_NOT_LIVE"
	ErrExamLive              ErrCode = "EXAM_LIVE"
	ErrNotEligible           ErrCode = "EXAM_NOT_ELIGIBLE"
	ErrInvalidSchedule       ErrCode = "INVALID_SCHEDULE"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrPaperNotGenerated     ErrCode = "PAPER_NOT_GENERATED"
	ErrAttemptClosed         ErrCode = "ATTEMPT_CLOSED"
	ErrQuestionNotInPaper    ErrCode = "QUESTION_NOT_IN_PAPER"

	// ─── AI extraction ─────────────────────────────────────────────────
	ErrProviderUnavailable ErrCode = "PROVIDER_UNAVAILABLE"
	ErrExtractionNotReady  ErrCode = "EXTRACTION_NOT_READY"
	ErrNothingToImport     ErrCode = "NOTHING_TO_IMPORT"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)
