package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type studentGetter interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}

type lobbyService interface {
	ListAvailable(ctx context.Context, student *model.User) ([]model.AvailableExam, error)
}

type attemptService interface {
	Start(ctx context.Context, examID uuid.UUID, student *model.User) (*model.StartAttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, userID int, req model.SaveAnswerRequest) (time.Time, error)
	Submit(ctx context.Context, attemptID uuid.UUID, userID int) (*model.ExamAttempt, error)
}

// StudentPortalHandler handles student-facing endpoints (lobby, exam taking).
type StudentPortalHandler struct {
	users    studentGetter
	exams    lobbyService
	attempts attemptService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(users studentGetter, exams lobbyService, attempts attemptService) *StudentPortalHandler {
	return &StudentPortalHandler{users: users, exams: exams, attempts: attempts}
}

// student loads the caller's account. Class level and school are read from
// the database rather than the token so placement changes apply at once.
func (h *StudentPortalHandler) student(c *gin.Context) (*model.User, bool) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return nil, false
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return user, true
}

// GetLobby godoc
// GET /api/v1/student/exams
// Returns live exams for the student's class level and school.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	student, ok := h.student(c)
	if !ok {
		return
	}
	exams, err := h.exams.ListAvailable(c.Request.Context(), student)
	if err != nil {
		fail(c, err)
		return
	}
	if exams == nil {
		exams = []model.AvailableExam{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartAttempt godoc
// POST /api/v1/student/exams/:id/start
// Creates the attempt, or resumes the one in progress, and returns the paper.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	student, ok := h.student(c)
	if !ok {
		return
	}
	resp, err := h.attempts.Start(c.Request.Context(), examID, student)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// SaveAnswer godoc
// PUT /api/v1/student/attempts/:id/answers
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	attemptID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.SaveAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	savedAt, err := h.attempts.SaveAnswer(c.Request.Context(), attemptID, claims.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "saved_at": savedAt})
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:id/submit
// Grades and closes the attempt.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	attempt, err := h.attempts.Submit(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}
