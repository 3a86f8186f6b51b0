package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-admin/internal/config"
)

const (
	applicationName = "exstem-admin"
	connectTimeout  = 5 * time.Second
)

// NewPostgresPool opens the pgx pool shared by the raw-SQL repositories and
// by gorm. Queries slower than cfg.SlowQuery are logged at warn level.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	pc.MaxConns = cfg.MaxDBConns
	pc.MinConns = min(2, cfg.MaxDBConns)
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	if _, set := pc.ConnConfig.RuntimeParams["application_name"]; !set {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if cfg.SlowQuery > 0 {
		pc.ConnConfig.Tracer = &slowQueryTracer{threshold: cfg.SlowQuery, log: log}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pingWithin(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("database", pc.ConnConfig.Database).
		Str("host", pc.ConnConfig.Host).
		Int32("max_conns", pc.MaxConns).
		Dur("slow_query", cfg.SlowQuery).
		Msg("PostgreSQL connected")
	return pool, nil
}

func pingWithin(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return ping(ctx)
}

type traceStartKey struct{}

type traceStart struct {
	at  time.Time
	sql string
}

// slowQueryTracer is a pgx.QueryTracer that reports statements exceeding
// threshold. Arguments are never logged; they may hold password hashes.
type slowQueryTracer struct {
	threshold time.Duration
	log       zerolog.Logger
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: time.Now(), sql: data.SQL})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := time.Since(start.at)
	if elapsed < t.threshold {
		return
	}
	ev := t.log.Warn().
		Dur("elapsed", elapsed).
		Str("sql", compactSQL(start.sql)).
		Int64("rows", data.CommandTag.RowsAffected())
	if data.Err != nil {
		ev = ev.Err(data.Err)
	}
	ev.Msg("slow query")
}

// compactSQL collapses whitespace so multi-line statements log on one line.
func compactSQL(sql string) string {
	out := make([]byte, 0, len(sql))
	space := false
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case ' ', '\n', '\t', '\r':
			space = len(out) > 0
		default:
			if space {
				out = append(out, ' ')
				space = false
			}
			out = append(out, c)
		}
	}
	return string(out)
}
