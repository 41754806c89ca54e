package repository

import (
	"context"

	"school-song-portal/internal/domain/model"
)

type SongRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Song) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Song, error)
	FindByTaskID(ctx context.Context, tx Tx, taskID string) (*model.Song, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Song, error)
	// ListGenerating returns non-terminal songs that already hold a provider
	// task id, oldest first. Used by the background poll sweep.
	ListGenerating(ctx context.Context, tx Tx, limit int) ([]*model.Song, error)
	// MarkFailed flips a non-terminal song to failed and reports whether
	// this call made the transition. Exactly one of any set of concurrent
	// callers gets true; the rest see the row already terminal.
	MarkFailed(ctx context.Context, tx Tx, id, errorMessage string) (bool, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
