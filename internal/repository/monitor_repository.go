package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
)

// MonitorRepository provides data access for the live exam monitor.
// It combines PostgreSQL (attempt state) and Redis (live answer counts).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// MonitorRow is one attempt in the monitor snapshot.
type MonitorRow struct {
	AttemptID   uuid.UUID           `json:"attempt_id"`
	UserID      int                 `json:"user_id"`
	StudentName string              `json:"student_name"`
	Status      model.AttemptStatus `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Answered    int64               `json:"answered"`
	Score       *float64            `json:"score,omitempty"`
}

// Snapshot lists every active attempt of an exam. For in-progress attempts the
// answered count is the larger of the persisted rows and the live Redis hash,
// since the answer worker may not have flushed yet.
func (r *MonitorRepository) Snapshot(ctx context.Context, examID uuid.UUID) ([]MonitorRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, COALESCE(NULLIF(p.full_name, ''), u.email), a.status, a.started_at, a.expires_at, a.score,
			(SELECT COUNT(*) FROM exam_answers ea WHERE ea.attempt_id = a.id)
		 FROM exam_attempts a
		 JOIN users u ON u.id = a.user_id
		 LEFT JOIN profiles p ON p.user_id = a.user_id
		 WHERE a.exam_id = $1 AND a.is_active
		 ORDER BY a.started_at`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []MonitorRow{}
	for rows.Next() {
		var m MonitorRow
		if err := rows.Scan(&m.AttemptID, &m.UserID, &m.StudentName, &m.Status, &m.StartedAt, &m.ExpiresAt, &m.Score, &m.Answered); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Pipeline HLEN for the in-progress attempts.
	pipe := r.rdb.Pipeline()
	cmds := make(map[int]*redis.IntCmd)
	for i, m := range result {
		if m.Status == model.AttemptInProgress {
			cmds[i] = pipe.HLen(ctx, config.CacheKey.AttemptAnswersKey(m.AttemptID.String()))
		}
	}
	if len(cmds) == 0 {
		return result, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, cmd := range cmds {
		if n := cmd.Val(); n > result[i].Answered {
			result[i].Answered = n
		}
	}
	return result, nil
}
