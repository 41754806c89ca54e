// File: internal/usecase/song_uc.go
package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/domain/ports/repository"
	"school-song-portal/internal/infra/metrics"
)

// Compile-time check
var _ SongUseCase = (*songUC)(nil)

// SubmitSongInput carries the caller-supplied fields of an original-song job.
type SubmitSongInput struct {
	Title        string
	Lyrics       string
	Style        string
	Model        string
	VocalGender  string
	Instrumental bool
}

// SubmitCoverInput carries the fields of a cover job. SourceUploadURL must
// point at audio produced by the upstream upload/transform step.
type SubmitCoverInput struct {
	SourceUploadURL     string
	Title               string
	Prompt              string
	Style               string
	Model               string
	VocalGender         string
	Instrumental        bool
	NegativeTags        string
	StyleWeight         float64
	WeirdnessConstraint float64
	AudioWeight         float64
	SourceYouTubeURL    string
}

// PollResult is the caller-facing view of a job after a status check.
type PollResult struct {
	Song      *model.Song
	State     model.SongStatus
	AudioURL  string
	AudioURL2 string
	Duration  int
	ErrorText string
}

// SongUseCase drives a generation job from submission through its terminal
// state and enforces the credit/refund invariant: credits are consumed only
// by jobs that reach `generating`, and restored exactly once if such a job
// later fails.
type SongUseCase interface {
	Submit(ctx context.Context, userID string, in SubmitSongInput) (*model.Song, error)
	SubmitCover(ctx context.Context, userID string, in SubmitCoverInput) (*model.Song, error)
	// Poll queries the provider for the task and reconciles the local row.
	// callerID may be empty for trusted internal callers (the poll sweep).
	Poll(ctx context.Context, taskID, callerID string) (*PollResult, error)
	Delete(ctx context.Context, songID, callerID string) error
	Get(ctx context.Context, songID, callerID string) (*model.Song, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Song, error)
	ListGenerating(ctx context.Context, limit int) ([]*model.Song, error)
}

type songUC struct {
	songs       repository.SongRepository
	accounts    repository.AccountRepository
	ledger      repository.LedgerRepository
	settings    SettingsUseCase
	music       adapter.MusicGenerationAdapter
	tm          repository.TransactionManager
	callbackURL string
	log         *zerolog.Logger
}

func NewSongUseCase(
	songs repository.SongRepository,
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	settings SettingsUseCase,
	music adapter.MusicGenerationAdapter,
	tm repository.TransactionManager,
	callbackURL string,
	logger *zerolog.Logger,
) *songUC {
	l := logger.With().Str("component", "SongUC").Logger()
	return &songUC{
		songs:       songs,
		accounts:    accounts,
		ledger:      ledger,
		settings:    settings,
		music:       music,
		tm:          tm,
		callbackURL: callbackURL,
		log:         &l,
	}
}

func (u *songUC) Submit(ctx context.Context, userID string, in SubmitSongInput) (*model.Song, error) {
	if !in.Instrumental && strings.TrimSpace(in.Lyrics) == "" {
		return nil, fmt.Errorf("lyrics required for a vocal song: %w", domain.ErrInvalidArgument)
	}
	song := &model.Song{
		UserID: userID,
		Title:  in.Title,
		Lyrics: in.Lyrics,
		Style:  in.Style,
		Kind:   model.SongKindOriginal,
	}
	submit := func(ctx context.Context) (string, error) {
		return u.music.SubmitSong(ctx, adapter.SubmitParams{
			Title:        in.Title,
			Lyrics:       in.Lyrics,
			Style:        in.Style,
			Model:        in.Model,
			VocalGender:  in.VocalGender,
			Instrumental: in.Instrumental,
			CallbackURL:  u.callbackURL,
		})
	}
	return u.submit(ctx, userID, song, submit)
}

func (u *songUC) SubmitCover(ctx context.Context, userID string, in SubmitCoverInput) (*model.Song, error) {
	if strings.TrimSpace(in.SourceUploadURL) == "" {
		return nil, fmt.Errorf("source audio url required: %w", domain.ErrInvalidArgument)
	}
	if !in.Instrumental && strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt required for a vocal cover: %w", domain.ErrInvalidArgument)
	}
	title := in.Title
	if title == "" {
		title = "Cover Song"
	}
	song := &model.Song{
		UserID:           userID,
		Title:            title,
		Lyrics:           in.Prompt,
		Style:            in.Style,
		Kind:             model.SongKindCover,
		SourceYouTubeURL: in.SourceYouTubeURL,
		SourceUploadURL:  in.SourceUploadURL,
	}
	submit := func(ctx context.Context) (string, error) {
		return u.music.SubmitCover(ctx, adapter.CoverParams{
			UploadURL:           in.SourceUploadURL,
			Title:               in.Title,
			Prompt:              in.Prompt,
			Style:               in.Style,
			Model:               in.Model,
			VocalGender:         in.VocalGender,
			Instrumental:        in.Instrumental,
			NegativeTags:        in.NegativeTags,
			StyleWeight:         in.StyleWeight,
			WeirdnessConstraint: in.WeirdnessConstraint,
			AudioWeight:         in.AudioWeight,
			CallbackURL:         u.callbackURL,
		})
	}
	return u.submit(ctx, userID, song, submit)
}

// submit runs the shared lifecycle: price lookup, balance precondition,
// pending row, provider call, then either the atomic
// {task id + generating + debit + ledger entry} commit or a failed row
// with no debit retained.
func (u *songUC) submit(ctx context.Context, userID string, song *model.Song, call func(ctx context.Context) (string, error)) (*model.Song, error) {
	price := u.settings.CreditsPerSong(ctx)

	account, err := u.accounts.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if account.Credits < price {
		return nil, domain.ErrInsufficientCredits
	}

	now := time.Now()
	song.ID = uuid.NewString()
	song.Status = model.SongStatusPending
	song.CreditsUsed = price
	song.CreatedAt = now
	song.UpdatedAt = now
	if err := u.songs.Save(ctx, nil, song); err != nil {
		return nil, err
	}

	taskID, err := call(ctx)
	if err != nil {
		song.Status = model.SongStatusFailed
		song.ErrorMessage = err.Error()
		if saveErr := u.songs.Save(ctx, nil, song); saveErr != nil {
			u.log.Error().Err(saveErr).Str("song_id", song.ID).Msg("persist submit failure")
		}
		metrics.IncSongJob(string(model.SongStatusFailed))
		return song, fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}

	// The provider accepted the task: transition, debit and audit as a unit.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		song.TaskID = taskID
		song.Status = model.SongStatusGenerating
		if err := u.songs.Save(ctx, tx, song); err != nil {
			return err
		}
		ok, err := u.accounts.DeductCredits(ctx, tx, userID, price)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientCredits
		}
		return u.ledger.Append(ctx, tx, &model.LedgerEntry{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Amount:    -price,
			Type:      model.LedgerEntryDeduct,
			Reason:    "song generation",
			SongID:    song.ID,
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		// Nothing was committed; leave a failed row so the student sees
		// why the job never started, with their balance untouched.
		song.TaskID = ""
		song.Status = model.SongStatusFailed
		song.ErrorMessage = err.Error()
		if saveErr := u.songs.Save(ctx, nil, song); saveErr != nil {
			u.log.Error().Err(saveErr).Str("song_id", song.ID).Msg("persist debit failure")
		}
		metrics.IncSongJob(string(model.SongStatusFailed))
		return song, err
	}

	metrics.IncSongJob(string(model.SongStatusGenerating))
	metrics.IncLedgerEntry(string(model.LedgerEntryDeduct))
	u.log.Info().Str("song_id", song.ID).Str("task_id", taskID).Int("price", price).Msg("song submitted")
	return song, nil
}

func (u *songUC) Poll(ctx context.Context, taskID, callerID string) (*PollResult, error) {
	song, err := u.songs.FindByTaskID(ctx, nil, taskID)
	if err != nil {
		return nil, err
	}
	if callerID != "" && song.UserID != callerID {
		return nil, domain.ErrNotOwner
	}

	info, err := u.music.FetchTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderPollFailed, err)
	}

	switch {
	case info.Status == adapter.TaskStatusSuccess && len(info.Tracks) > 0 && info.Tracks[0].AudioURL != "":
		return u.complete(ctx, song, info)
	case adapter.IsTaskFailure(info.Status):
		return u.fail(ctx, song, info)
	default:
		// FIRST_SUCCESS and any unrecognized in-progress status keep the
		// job in `generating`, so the state machine is total over every
		// provider response.
		if !song.IsTerminal() && song.Status != model.SongStatusGenerating {
			song.Status = model.SongStatusGenerating
			if err := u.songs.Save(ctx, nil, song); err != nil {
				return nil, err
			}
		}
		return &PollResult{Song: song, State: song.Status}, nil
	}
}

// complete applies the terminal success values. Re-applying them on a
// repeat poll is harmless; a job that already failed (and was refunded)
// stays failed.
func (u *songUC) complete(ctx context.Context, song *model.Song, info *adapter.TaskInfo) (*PollResult, error) {
	if song.Status == model.SongStatusFailed {
		return &PollResult{Song: song, State: song.Status, ErrorText: song.ErrorMessage}, nil
	}
	first := info.Tracks[0]
	wasCompleted := song.Status == model.SongStatusCompleted

	song.Status = model.SongStatusCompleted
	song.AudioURL = first.AudioURL
	song.DurationSeconds = int(math.Round(first.DurationSeconds))
	if len(info.Tracks) > 1 && info.Tracks[1].AudioURL != "" {
		song.AudioURL2 = info.Tracks[1].AudioURL
	}
	song.ErrorMessage = ""
	if err := u.songs.Save(ctx, nil, song); err != nil {
		return nil, err
	}
	if !wasCompleted {
		metrics.IncSongJob(string(model.SongStatusCompleted))
		u.log.Info().Str("song_id", song.ID).Int("duration", song.DurationSeconds).Msg("song completed")
	}
	return &PollResult{
		Song:      song,
		State:     song.Status,
		AudioURL:  song.AudioURL,
		AudioURL2: song.AudioURL2,
		Duration:  song.DurationSeconds,
	}, nil
}

// fail marks the job failed and reverses the original debit exactly once.
// The status flip is a conditional update that only matches a non-terminal
// row, and the refund shares its transaction and is gated on that claim, so
// duplicate or concurrent polls of the same failing task (browser refresh
// racing the background sweep) never produce a second compensating entry.
func (u *songUC) fail(ctx context.Context, song *model.Song, info *adapter.TaskInfo) (*PollResult, error) {
	if song.IsTerminal() {
		return &PollResult{Song: song, State: song.Status, ErrorText: song.ErrorMessage}, nil
	}

	msg := info.ErrorMessage
	if msg == "" {
		msg = "Generation failed"
	}

	refunded := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		claimed, err := u.songs.MarkFailed(ctx, tx, song.ID, msg)
		if err != nil {
			return err
		}
		if !claimed {
			// Another poll already flipped (and refunded) this job.
			current, err := u.songs.FindByID(ctx, tx, song.ID)
			if err != nil {
				return err
			}
			*song = *current
			return nil
		}
		song.Status = model.SongStatusFailed
		song.ErrorMessage = msg
		if _, err := u.accounts.AddCredits(ctx, tx, song.UserID, song.CreditsUsed); err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, &model.LedgerEntry{
			ID:        ulid.Make().String(),
			UserID:    song.UserID,
			Amount:    song.CreditsUsed,
			Type:      model.LedgerEntryAdd,
			Reason:    "refund for failed generation",
			SongID:    song.ID,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refunded {
		metrics.IncSongJob(string(model.SongStatusFailed))
		metrics.IncLedgerEntry(string(model.LedgerEntryAdd))
		u.log.Warn().Str("song_id", song.ID).Str("provider_status", info.Status).Str("error", msg).Msg("song failed, credits refunded")
	}
	return &PollResult{Song: song, State: song.Status, ErrorText: song.ErrorMessage}, nil
}

// Delete removes the row only. It deliberately leaves the ledger and the
// account balance untouched whatever state the song was in.
func (u *songUC) Delete(ctx context.Context, songID, callerID string) error {
	song, err := u.songs.FindByID(ctx, nil, songID)
	if err != nil {
		return err
	}
	if song.UserID != callerID {
		return domain.ErrNotOwner
	}
	return u.songs.Delete(ctx, nil, songID)
}

func (u *songUC) Get(ctx context.Context, songID, callerID string) (*model.Song, error) {
	song, err := u.songs.FindByID(ctx, nil, songID)
	if err != nil {
		return nil, err
	}
	if callerID != "" && song.UserID != callerID {
		return nil, domain.ErrNotOwner
	}
	return song, nil
}

func (u *songUC) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Song, error) {
	return u.songs.ListByUser(ctx, nil, userID, offset, limit)
}

func (u *songUC) ListGenerating(ctx context.Context, limit int) ([]*model.Song, error) {
	return u.songs.ListGenerating(ctx, nil, limit)
}
