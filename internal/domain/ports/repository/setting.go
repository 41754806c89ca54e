package repository

import (
	"context"

	"school-song-portal/internal/domain/model"
)

type SettingRepository interface {
	// Get returns domain.ErrNotFound when the key has no stored value.
	Get(ctx context.Context, tx Tx, key string) (*model.Setting, error)
	Set(ctx context.Context, tx Tx, s *model.Setting) error
	List(ctx context.Context, tx Tx) ([]*model.Setting, error)
}
