package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	ws "github.com/stemsi/exstem-admin/internal/websocket"
)

type attemptStreamService interface {
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, userID int, req model.SaveAnswerRequest) (time.Time, error)
	Submit(ctx context.Context, attemptID uuid.UUID, userID int) (*model.ExamAttempt, error)
}

// WSHandler streams a student's attempt over a WebSocket.
type WSHandler struct {
	attempts attemptStreamService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(attempts attemptStreamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: ws.NewUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:id/stream
// Actions: autosave {question_id, answer}, submit, ping.
// Events: saved, graded, pong, error. The socket closes after a successful submit.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	attemptID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	s := &attemptStream{
		h:         h,
		conn:      conn,
		attemptID: attemptID,
		userID:    claims.UserID,
		log: h.log.With().
			Int("student_id", claims.UserID).
			Str("attempt_id", attemptID.String()).
			Logger(),
	}
	s.log.Info().Msg("Student connected")
	s.run(c.Request.Context())
}

type attemptStream struct {
	h         *WSHandler
	conn      *ws.Conn
	attemptID uuid.UUID
	userID    int
	log       zerolog.Logger
}

func (s *attemptStream) run(ctx context.Context) {
	for {
		msg, err := s.conn.Next()
		if err != nil {
			if ws.ClosedUnexpectedly(err) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			s.autosave(ctx, msg)
		case ws.ActionSubmit:
			if s.submit(ctx) {
				_ = s.conn.CloseSubmitted()
				return
			}
		case ws.ActionPing:
			_ = s.conn.Pong()
		default:
			s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = s.conn.Fail(string(response.ErrValidation), "unknown action: "+string(msg.Action))
		}
	}
}

func (s *attemptStream) autosave(ctx context.Context, msg ws.Request) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		_ = s.conn.Fail(string(response.ErrValidation), "question_id must be a UUID")
		return
	}

	savedAt, err := s.h.attempts.SaveAnswer(ctx, s.attemptID, s.userID, model.SaveAnswerRequest{
		QuestionID: questionID,
		Answer:     msg.Answer,
	})
	if err != nil {
		s.fail(err)
		return
	}
	_ = s.conn.Saved(ws.SavedResponse{QuestionID: questionID, SavedAt: savedAt})
}

func (s *attemptStream) submit(ctx context.Context) bool {
	attempt, err := s.h.attempts.Submit(ctx, s.attemptID, s.userID)
	if err != nil {
		s.fail(err)
		return false
	}
	s.log.Info().Str("status", string(attempt.Status)).Msg("Attempt submitted over WebSocket")
	_ = s.conn.Graded(ws.GradedResponse{
		Status:       string(attempt.Status),
		Score:        attempt.Score,
		MaxScore:     attempt.MaxScore,
		CorrectCount: attempt.CorrectCount,
		WrongCount:   attempt.WrongCount,
		PendingCount: attempt.PendingCount,
	})
	return true
}

// fail reports mapped service errors verbatim and hides everything else.
func (s *attemptStream) fail(err error) {
	m, ok := lookupError(err)
	if !ok {
		s.log.Error().Err(err).Msg("Attempt stream action failed")
		_ = s.conn.Fail(string(response.ErrInternal), "internal error")
		return
	}
	_ = s.conn.Fail(string(m.code), err.Error())
}
