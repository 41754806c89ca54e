package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

var _ repository.SettingRepository = (*settingRepo)(nil)

type settingRepo struct {
	pool *pgxpool.Pool
}

func NewSettingRepo(pool *pgxpool.Pool) *settingRepo {
	return &settingRepo{pool: pool}
}

func (r *settingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT key, value, COALESCE(updated_by,''), updated_at FROM settings WHERE key=$1;`, key)
	if err != nil {
		return nil, err
	}
	var s model.Setting
	if err := row.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *settingRepo) Set(ctx context.Context, tx repository.Tx, s *model.Setting) error {
	const q = `
INSERT INTO settings (key, value, updated_by, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_by = EXCLUDED.updated_by,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, s.Key, s.Value, nullable(s.UpdatedBy), s.UpdatedAt)
	return err
}

func (r *settingRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT key, value, COALESCE(updated_by,''), updated_at FROM settings ORDER BY key;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
