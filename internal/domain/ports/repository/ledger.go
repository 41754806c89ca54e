package repository

import (
	"context"

	"school-song-portal/internal/domain/model"
)

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error)
	ListBySong(ctx context.Context, tx Tx, songID string) ([]*model.LedgerEntry, error)
}
