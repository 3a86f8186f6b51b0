package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

type DashboardData struct {
	Scope                DashboardScope                         `json:"scope"`
	TotalSchools         int                                    `json:"total_schools"`
	TotalStudents        int                                    `json:"total_students"`
	TotalQuestions       int                                    `json:"total_questions"`
	ActiveExams          int                                    `json:"active_exams"`
	AttemptsToday        int                                    `json:"attempts_today"`
	ExamStatusCounts     map[model.ExamStatus]int               `json:"exam_status_counts"`
	UpcomingExams        []repository.DashboardUpcomingExam     `json:"upcoming_exams"`
	RecentCompletedExams []repository.DashboardRecentExamResult `json:"recent_completed_exams"`
}

// DashboardScope is the optional filter of a dashboard request; Limit caps
// both exam lists.
type DashboardScope struct {
	SchoolID     *int `form:"school_id" json:"school_id,omitempty" binding:"omitempty,min=1"`
	ClassLevelID *int `form:"class_level_id" json:"class_level_id,omitempty" binding:"omitempty,min=1"`
	Limit        int  `form:"limit" json:"limit" binding:"omitempty,min=1,max=50"`
}

// DashboardStore is the persistence DashboardService needs.
type DashboardStore interface {
	GetSummaryCounts(ctx context.Context, scope repository.DashboardScope, since time.Time) (*repository.DashboardCounts, error)
	GetExamStatusCounts(ctx context.Context, scope repository.DashboardScope) (map[model.ExamStatus]int, error)
	GetUpcomingExams(ctx context.Context, scope repository.DashboardScope, now time.Time, limit int) ([]repository.DashboardUpcomingExam, error)
	GetRecentExamResults(ctx context.Context, scope repository.DashboardScope, limit int) ([]repository.DashboardRecentExamResult, error)
}

const defaultDashboardLimit = 5

type DashboardService struct {
	repo DashboardStore
	now  func() time.Time
}

func NewDashboardService(repo DashboardStore) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

// GetDashboardData runs the four dashboard queries concurrently and fails
// if any of them does. "Today" starts at local midnight.
func (s *DashboardService) GetDashboardData(ctx context.Context, scope DashboardScope) (*DashboardData, error) {
	if scope.Limit == 0 {
		scope.Limit = defaultDashboardLimit
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	rs := repository.DashboardScope{SchoolID: scope.SchoolID, ClassLevelID: scope.ClassLevelID}

	data := &DashboardData{Scope: scope}
	var counts *repository.DashboardCounts

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.repo.GetSummaryCounts(gctx, rs, midnight)
		return err
	})
	g.Go(func() (err error) {
		data.ExamStatusCounts, err = s.repo.GetExamStatusCounts(gctx, rs)
		return err
	})
	g.Go(func() (err error) {
		data.UpcomingExams, err = s.repo.GetUpcomingExams(gctx, rs, now, scope.Limit)
		return err
	})
	g.Go(func() (err error) {
		data.RecentCompletedExams, err = s.repo.GetRecentExamResults(gctx, rs, scope.Limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.TotalSchools = counts.Schools
	data.TotalStudents = counts.Students
	data.TotalQuestions = counts.Questions
	data.ActiveExams = counts.ActiveExams
	data.AttemptsToday = counts.AttemptsToday
	return data, nil
}
