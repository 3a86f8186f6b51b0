package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

// DashboardScope narrows every dashboard figure. Exams without a school
// are open to all schools and therefore count under any school scope.
type DashboardScope struct {
	SchoolID     *int
	ClassLevelID *int
}

// DashboardRepository runs the read-only aggregate queries of the admin
// dashboard.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

type DashboardCounts struct {
	Schools       int `json:"schools"`
	Students      int `json:"students"`
	Questions     int `json:"questions"`
	ActiveExams   int `json:"active_exams"`
	AttemptsToday int `json:"attempts_today"`
}

type DashboardUpcomingExam struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	StartAt  time.Time `json:"start_at"`
	Duration int       `json:"duration_minutes"`
}

type DashboardRecentExamResult struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	EndAt            time.Time `json:"end_at"`
	ParticipantCount int       `json:"participant_count"`
	AverageScore     *float64  `json:"average_score"`
	MaxScore         float64   `json:"max_score"`
}

// examScope filters scheduled_exams aliased as e; $1 is the school and $2
// the class level, both nullable.
const examScope = `
	e.is_active
	AND ($1::int IS NULL OR e.school_id IS NULL OR e.school_id = $1)
	AND ($2::int IS NULL OR e.class_level_id = $2)`

// GetSummaryCounts counts attempts started at or after since.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context, scope DashboardScope, since time.Time) (*DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM schools s
			  WHERE s.is_active AND ($1::int IS NULL OR s.id = $1)),
			(SELECT COUNT(*) FROM users u JOIN profiles p ON p.user_id = u.id
			  WHERE u.kind = 'student' AND u.is_active
			    AND ($1::int IS NULL OR p.school_id = $1)
			    AND ($2::int IS NULL OR p.class_level_id = $2)),
			(SELECT COUNT(*) FROM questions q JOIN subjects sub ON sub.id = q.subject_id
			  WHERE q.is_active AND ($2::int IS NULL OR sub.class_level_id = $2)),
			(SELECT COUNT(*) FROM scheduled_exams e
			  WHERE `+examScope+` AND e.status IN ('scheduled', 'live')),
			(SELECT COUNT(*) FROM exam_attempts a JOIN scheduled_exams e ON e.id = a.exam_id
			  WHERE a.is_active AND a.started_at >= $3 AND `+examScope+`)`,
		scope.SchoolID, scope.ClassLevelID, since,
	).Scan(&c.Schools, &c.Students, &c.Questions, &c.ActiveExams, &c.AttemptsToday)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &c, nil
}

// GetExamStatusCounts reports every status, including those with no exams.
func (r *DashboardRepository) GetExamStatusCounts(ctx context.Context, scope DashboardScope) (map[model.ExamStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.status, COUNT(*) FROM scheduled_exams e WHERE `+examScope+` GROUP BY e.status`,
		scope.SchoolID, scope.ClassLevelID)
	if err != nil {
		return nil, err
	}

	counts := map[model.ExamStatus]int{
		model.ExamDraft: 0, model.ExamScheduled: 0, model.ExamLive: 0,
		model.ExamCompleted: 0, model.ExamCancelled: 0,
	}
	var (
		status model.ExamStatus
		n      int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		counts[status] = n
		return nil
	})
	return counts, err
}

func (r *DashboardRepository) GetUpcomingExams(ctx context.Context, scope DashboardScope, now time.Time, limit int) ([]DashboardUpcomingExam, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.title, e.start_at, e.duration_minutes
		FROM scheduled_exams e
		WHERE `+examScope+` AND e.status = $3 AND e.start_at > $4
		ORDER BY e.start_at
		LIMIT $5`,
		scope.SchoolID, scope.ClassLevelID, model.ExamScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[DashboardUpcomingExam])
}

// GetRecentExamResults averages finished attempts of the latest completed
// exams. AverageScore is nil for an exam nobody sat.
func (r *DashboardRepository) GetRecentExamResults(ctx context.Context, scope DashboardScope, limit int) ([]DashboardRecentExamResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.title, e.end_at,
		       COUNT(a.id),
		       ROUND(AVG(a.score)::numeric, 2)::float8,
		       e.total_marks
		FROM scheduled_exams e
		LEFT JOIN exam_attempts a
		       ON a.exam_id = e.id AND a.is_active AND a.status <> 'in_progress'
		WHERE `+examScope+` AND e.status = $3
		GROUP BY e.id
		ORDER BY e.end_at DESC
		LIMIT $4`,
		scope.SchoolID, scope.ClassLevelID, model.ExamCompleted, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[DashboardRecentExamResult])
}
