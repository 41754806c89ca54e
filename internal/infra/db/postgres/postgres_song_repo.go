package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/repository"
)

var _ repository.SongRepository = (*songRepo)(nil)

type songRepo struct {
	pool *pgxpool.Pool
}

func NewSongRepo(pool *pgxpool.Pool) *songRepo {
	return &songRepo{pool: pool}
}

const songColumns = `id, user_id, title, lyrics, style, kind, task_id, status,
       audio_url, audio_url_2, duration_seconds, credits_used, error_message,
       source_youtube_url, source_upload_url, created_at, updated_at`

func (r *songRepo) Save(ctx context.Context, tx repository.Tx, s *model.Song) error {
	s.UpdatedAt = time.Now()
	const q = `
INSERT INTO songs (id, user_id, title, lyrics, style, kind, task_id, status,
  audio_url, audio_url_2, duration_seconds, credits_used, error_message,
  source_youtube_url, source_upload_url, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  task_id = EXCLUDED.task_id,
  status = EXCLUDED.status,
  audio_url = EXCLUDED.audio_url,
  audio_url_2 = EXCLUDED.audio_url_2,
  duration_seconds = EXCLUDED.duration_seconds,
  error_message = EXCLUDED.error_message,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.Title, s.Lyrics, s.Style, string(s.Kind), s.TaskID, string(s.Status),
		s.AudioURL, s.AudioURL2, s.DurationSeconds, s.CreditsUsed, s.ErrorMessage,
		s.SourceYouTubeURL, s.SourceUploadURL, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *songRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Song, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+songColumns+` FROM songs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanSong(row)
}

func (r *songRepo) FindByTaskID(ctx context.Context, tx repository.Tx, taskID string) (*model.Song, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+songColumns+` FROM songs WHERE task_id=$1;`, taskID)
	if err != nil {
		return nil, err
	}
	return scanSong(row)
}

func (r *songRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Song, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+songColumns+` FROM songs WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`,
		userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSongs(rows)
}

func (r *songRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, errorMessage string) (bool, error) {
	// The WHERE clause is the refund guard: two transactions racing on the
	// same row serialize on the row lock, and the loser matches zero rows.
	const q = `
UPDATE songs SET status='failed', error_message=$2, updated_at=now()
 WHERE id=$1 AND status NOT IN ('completed','failed');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, errorMessage)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *songRepo) ListGenerating(ctx context.Context, tx repository.Tx, limit int) ([]*model.Song, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+songColumns+` FROM songs
		  WHERE status IN ('pending','generating') AND task_id <> ''
		  ORDER BY created_at ASC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSongs(rows)
}

func (r *songRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM songs WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSong(row pgx.Row) (*model.Song, error) {
	var s model.Song
	var kind, status string
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Lyrics, &s.Style, &kind, &s.TaskID, &status,
		&s.AudioURL, &s.AudioURL2, &s.DurationSeconds, &s.CreditsUsed, &s.ErrorMessage,
		&s.SourceYouTubeURL, &s.SourceUploadURL, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.Kind = model.SongKind(kind)
	s.Status = model.SongStatus(status)
	return &s, nil
}

func collectSongs(rows pgx.Rows) ([]*model.Song, error) {
	var out []*model.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
