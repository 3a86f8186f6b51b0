package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-admin/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewGorm opens a gorm handle that borrows connections from the pgx pool, so
// ORM and raw pgx queries share one set of connections and one MaxConns budget.
func NewGorm(pool *pgxpool.Pool, slowQuery time.Duration, log zerolog.Logger) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.NewGormLogger(log, slowQuery),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	log.Info().Msg("Gorm attached to PostgreSQL pool")
	return db, nil
}
