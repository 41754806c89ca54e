package repository

import (
	"context"

	"school-song-portal/internal/domain/model"
)

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.Account, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.Account, error)
	SetApproved(ctx context.Context, tx Tx, id string, approved bool) error

	// DeductCredits decrements the balance only when it covers the amount.
	// Returns false without writing when the balance is insufficient.
	DeductCredits(ctx context.Context, tx Tx, id string, amount int) (bool, error)
	// AddCredits increments the balance and returns the new value.
	AddCredits(ctx context.Context, tx Tx, id string, amount int) (int, error)
}
