package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, username, full_name, role, credits, approved, password_hash, created_at, updated_at`

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	a.UpdatedAt = time.Now()
	const q = `
INSERT INTO accounts (id, username, full_name, role, credits, approved, password_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  username = EXCLUDED.username,
  full_name = EXCLUDED.full_name,
  role = EXCLUDED.role,
  credits = EXCLUDED.credits,
  approved = EXCLUDED.approved,
  password_hash = EXCLUDED.password_hash,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.Username, a.FullName, string(a.Role), a.Credits, a.Approved, a.PasswordHash, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.Account, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+accountColumns+` FROM accounts WHERE username=$1;`, username)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Account, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC OFFSET $1 LIMIT $2;`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accountRepo) SetApproved(ctx context.Context, tx repository.Tx, id string, approved bool) error {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE accounts SET approved=$2, updated_at=now() WHERE id=$1;`, id, approved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeductCredits is a conditional decrement: the WHERE clause guarantees
// the balance never goes negative even under concurrent submissions.
func (r *accountRepo) DeductCredits(ctx context.Context, tx repository.Tx, id string, amount int) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidArgument
	}
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE accounts SET credits = credits - $2, updated_at=now() WHERE id=$1 AND credits >= $2;`, id, amount)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountRepo) AddCredits(ctx context.Context, tx repository.Tx, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	row, err := pickRow(ctx, r.pool, tx,
		`UPDATE accounts SET credits = credits + $2, updated_at=now() WHERE id=$1 RETURNING credits;`, id, amount)
	if err != nil {
		return 0, err
	}
	var credits int
	if err := row.Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return credits, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var role string
	err := row.Scan(&a.ID, &a.Username, &a.FullName, &role, &a.Credits, &a.Approved, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}
