package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

type monitorSnapshotter interface {
	Snapshot(ctx context.Context, examID uuid.UUID) ([]repository.MonitorRow, error)
}

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitorRepo monitorSnapshotter
	rdb         *redis.Client
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo monitorSnapshotter, rdb *redis.Client) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo, rdb: rdb}
}

// MonitorStats are the headline counters of the monitor view.
type MonitorStats struct {
	TotalJoined     int `json:"total_joined"`
	TotalInProgress int `json:"total_in_progress"`
	TotalSubmitted  int `json:"total_submitted"`
	TotalExpired    int `json:"total_expired"`
}

// MonitorSnapshot is the full state sent when an admin attaches.
type MonitorSnapshot struct {
	ExamID         uuid.UUID               `json:"exam_id"`
	Title          string                  `json:"title"`
	Status         model.ExamStatus        `json:"status"`
	TotalQuestions int                     `json:"total_questions"`
	Stats          MonitorStats            `json:"stats"`
	Attempts       []repository.MonitorRow `json:"attempts"`
}

// Snapshot builds the current monitor state of an exam.
func (s *MonitorService) Snapshot(ctx context.Context, exam *model.ScheduledExam) (*MonitorSnapshot, error) {
	rows, err := s.monitorRepo.Snapshot(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	snap := &MonitorSnapshot{
		ExamID:         exam.ID,
		Title:          exam.Title,
		Status:         exam.Status,
		TotalQuestions: exam.QuestionCount,
		Attempts:       rows,
	}
	snap.Stats.TotalJoined = len(rows)
	for _, r := range rows {
		switch r.Status {
		case model.AttemptInProgress:
			snap.Stats.TotalInProgress++
		case model.AttemptSubmitted:
			snap.Stats.TotalSubmitted++
		case model.AttemptExpired:
			snap.Stats.TotalExpired++
		}
	}
	return snap, nil
}

// Subscribe attaches to the exam's event channel. The caller must close the
// returned PubSub.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
