package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // a slow query must not stall the SSE loop
)

type examGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
}

type monitorService interface {
	Snapshot(ctx context.Context, exam *model.ScheduledExam) (*service.MonitorSnapshot, error)
	Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub
}

type MonitorHandler struct {
	exams          examGetter
	monitorService monitorService
	log            zerolog.Logger
}

func NewMonitorHandler(exams examGetter, monitorService monitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		exams:          exams,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a snapshot, then forwards attempt events as they are published.
// While events keep arriving the snapshot is re-sent every refreshInterval.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	reqCtx := c.Request.Context()

	exam, err := h.exams.GetByID(reqCtx, examID)
	if err != nil {
		fail(c, err)
		return
	}

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.monitorService.Subscribe(reqCtx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if !h.sendSnapshot(c, exam, "snapshot") {
		return
	}

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	dirty := false
	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON; forward them untouched.
			c.Writer.Write([]byte("event: event\ndata: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendSnapshot(c, exam, "refresh")

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, exam *model.ScheduledExam, event string) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.Snapshot(ctx, exam)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to build monitor snapshot")
		if event == "snapshot" {
			c.SSEvent("error", gin.H{"message": "snapshot unavailable"})
			c.Writer.Flush()
			return false
		}
		return true
	}
	c.SSEvent(event, snap)
	c.Writer.Flush()
	return true
}
