package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

const settingColumns = `key, value, updated_at`

// SettingRepository reads and writes app_settings with pgx.
type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

func (r *SettingRepository) GetAll(ctx context.Context) ([]model.AppSetting, error) {
	return r.collect(ctx, `SELECT `+settingColumns+` FROM app_settings ORDER BY key`)
}

// GetByKeys skips keys that have no row.
func (r *SettingRepository) GetByKeys(ctx context.Context, keys []string) ([]model.AppSetting, error) {
	return r.collect(ctx, `SELECT `+settingColumns+` FROM app_settings WHERE key = ANY($1) ORDER BY key`, keys)
}

func (r *SettingRepository) GetByKey(ctx context.Context, key string) (*model.AppSetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+settingColumns+` FROM app_settings WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	s, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[model.AppSetting])
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// UpsertMany sends every pair in a single batch inside one transaction.
func (r *SettingRepository) UpsertMany(ctx context.Context, values map[string]string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range values {
			batch.Queue(`
				INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
				ON CONFLICT (key) DO UPDATE
				SET value = EXCLUDED.value, updated_at = NOW()
				WHERE app_settings.value IS DISTINCT FROM EXCLUDED.value`, key, value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *SettingRepository) collect(ctx context.Context, sql string, args ...any) ([]model.AppSetting, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[model.AppSetting])
}
