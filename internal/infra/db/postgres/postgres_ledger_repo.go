package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

// ledgerRepo writes the append-only credit audit trail. There is no
// update or delete on this table, in code or in SQL.
type ledgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

const ledgerColumns = `id, user_id, amount, type, reason, song_id, created_by, created_at`

func (r *ledgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO credit_transactions (id, user_id, amount, type, reason, song_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.Amount, string(e.Type), e.Reason, nullable(e.SongID), nullable(e.CreatedBy), e.CreatedAt)
	return err
}

func (r *ledgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+ledgerColumns+` FROM credit_transactions
		  WHERE user_id=$1 ORDER BY id DESC OFFSET $2 LIMIT $3;`, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *ledgerRepo) ListBySong(ctx context.Context, tx repository.Tx, songID string) ([]*model.LedgerEntry, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+ledgerColumns+` FROM credit_transactions WHERE song_id=$1 ORDER BY id ASC;`, songID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*model.LedgerEntry, error) {
	var out []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var typ string
		var songID, createdBy *string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &typ, &e.Reason, &songID, &createdBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = model.LedgerEntryType(typ)
		if songID != nil {
			e.SongID = *songID
		}
		if createdBy != nil {
			e.CreatedBy = *createdBy
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// nullable maps an empty string to SQL NULL for optional reference columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
