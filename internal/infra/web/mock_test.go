//go:build !integration

package web

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/usecase"
)

// Stub usecases for handler tests. Assign the *Func fields per test;
// unset methods return ErrNotFound or zero values.

type stubAccountUC struct {
	RegisterFunc      func(ctx context.Context, username, fullName, password string) (*model.Account, error)
	CreateStudentFunc func(ctx context.Context, actorID, username, fullName string, initialCredits int) (*usecase.CreatedStudent, error)
	SetApprovedFunc   func(ctx context.Context, actorID, userID string, approved bool) error
	AuthenticateFunc  func(ctx context.Context, username, password string) (*model.Account, error)
	FindByIDFunc      func(ctx context.Context, id string) (*model.Account, error)
	ListFunc          func(ctx context.Context, offset, limit int) ([]*model.Account, error)
}

var _ usecase.AccountUseCase = (*stubAccountUC)(nil)

func (s *stubAccountUC) Register(ctx context.Context, username, fullName, password string) (*model.Account, error) {
	if s.RegisterFunc != nil {
		return s.RegisterFunc(ctx, username, fullName, password)
	}
	return nil, domain.ErrNotFound
}

func (s *stubAccountUC) CreateStudent(ctx context.Context, actorID, username, fullName string, initialCredits int) (*usecase.CreatedStudent, error) {
	if s.CreateStudentFunc != nil {
		return s.CreateStudentFunc(ctx, actorID, username, fullName, initialCredits)
	}
	return nil, domain.ErrNotFound
}

func (s *stubAccountUC) SetApproved(ctx context.Context, actorID, userID string, approved bool) error {
	if s.SetApprovedFunc != nil {
		return s.SetApprovedFunc(ctx, actorID, userID, approved)
	}
	return nil
}

func (s *stubAccountUC) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	if s.AuthenticateFunc != nil {
		return s.AuthenticateFunc(ctx, username, password)
	}
	return nil, domain.ErrUnauthorized
}

func (s *stubAccountUC) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if s.FindByIDFunc != nil {
		return s.FindByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubAccountUC) List(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, offset, limit)
	}
	return nil, nil
}

type stubSongUC struct {
	SubmitFunc         func(ctx context.Context, userID string, in usecase.SubmitSongInput) (*model.Song, error)
	SubmitCoverFunc    func(ctx context.Context, userID string, in usecase.SubmitCoverInput) (*model.Song, error)
	PollFunc           func(ctx context.Context, taskID, callerID string) (*usecase.PollResult, error)
	DeleteFunc         func(ctx context.Context, songID, callerID string) error
	GetFunc            func(ctx context.Context, songID, callerID string) (*model.Song, error)
	ListByUserFunc     func(ctx context.Context, userID string, offset, limit int) ([]*model.Song, error)
	ListGeneratingFunc func(ctx context.Context, limit int) ([]*model.Song, error)
}

var _ usecase.SongUseCase = (*stubSongUC)(nil)

func (s *stubSongUC) Submit(ctx context.Context, userID string, in usecase.SubmitSongInput) (*model.Song, error) {
	if s.SubmitFunc != nil {
		return s.SubmitFunc(ctx, userID, in)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSongUC) SubmitCover(ctx context.Context, userID string, in usecase.SubmitCoverInput) (*model.Song, error) {
	if s.SubmitCoverFunc != nil {
		return s.SubmitCoverFunc(ctx, userID, in)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSongUC) Poll(ctx context.Context, taskID, callerID string) (*usecase.PollResult, error) {
	if s.PollFunc != nil {
		return s.PollFunc(ctx, taskID, callerID)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSongUC) Delete(ctx context.Context, songID, callerID string) error {
	if s.DeleteFunc != nil {
		return s.DeleteFunc(ctx, songID, callerID)
	}
	return domain.ErrNotFound
}

func (s *stubSongUC) Get(ctx context.Context, songID, callerID string) (*model.Song, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, songID, callerID)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSongUC) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Song, error) {
	if s.ListByUserFunc != nil {
		return s.ListByUserFunc(ctx, userID, offset, limit)
	}
	return nil, nil
}

func (s *stubSongUC) ListGenerating(ctx context.Context, limit int) ([]*model.Song, error) {
	if s.ListGeneratingFunc != nil {
		return s.ListGeneratingFunc(ctx, limit)
	}
	return nil, nil
}

type stubCreditUC struct {
	AddCreditsFunc func(ctx context.Context, actorID, studentID string, amount int, reason string) (int, error)
	BalanceFunc    func(ctx context.Context, userID string) (int, error)
	HistoryFunc    func(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error)
}

var _ usecase.CreditUseCase = (*stubCreditUC)(nil)

func (s *stubCreditUC) AddCredits(ctx context.Context, actorID, studentID string, amount int, reason string) (int, error) {
	if s.AddCreditsFunc != nil {
		return s.AddCreditsFunc(ctx, actorID, studentID, amount, reason)
	}
	return 0, domain.ErrNotFound
}

func (s *stubCreditUC) Balance(ctx context.Context, userID string) (int, error) {
	if s.BalanceFunc != nil {
		return s.BalanceFunc(ctx, userID)
	}
	return 0, nil
}

func (s *stubCreditUC) History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	if s.HistoryFunc != nil {
		return s.HistoryFunc(ctx, userID, offset, limit)
	}
	return nil, nil
}

type stubLyricsUC struct {
	GenerateLyricsFunc func(ctx context.Context, theme string) (*adapter.LyricsDraft, error)
	TranscribeFunc     func(ctx context.Context, audioURL string) (string, error)
}

var _ usecase.LyricsUseCase = (*stubLyricsUC)(nil)

func (s *stubLyricsUC) GenerateLyrics(ctx context.Context, theme string) (*adapter.LyricsDraft, error) {
	if s.GenerateLyricsFunc != nil {
		return s.GenerateLyricsFunc(ctx, theme)
	}
	return &adapter.LyricsDraft{Title: "t", Lyrics: "l", Style: "s"}, nil
}

func (s *stubLyricsUC) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if s.TranscribeFunc != nil {
		return s.TranscribeFunc(ctx, audioURL)
	}
	return "", nil
}

type stubMediaUC struct {
	ProcessUploadFunc       func(ctx context.Context, userID, filename string, file io.Reader, speed float64, pitchSemitones int) (string, error)
	PrepareYouTubeCoverFunc func(ctx context.Context, userID, youtubeURL string, pitchSemitones int) (*usecase.CoverSource, error)
}

var _ usecase.MediaUseCase = (*stubMediaUC)(nil)

func (s *stubMediaUC) ProcessUpload(ctx context.Context, userID, filename string, file io.Reader, speed float64, pitchSemitones int) (string, error) {
	if s.ProcessUploadFunc != nil {
		return s.ProcessUploadFunc(ctx, userID, filename, file, speed, pitchSemitones)
	}
	return "", domain.ErrInvalidArgument
}

func (s *stubMediaUC) PrepareYouTubeCover(ctx context.Context, userID, youtubeURL string, pitchSemitones int) (*usecase.CoverSource, error) {
	if s.PrepareYouTubeCoverFunc != nil {
		return s.PrepareYouTubeCoverFunc(ctx, userID, youtubeURL, pitchSemitones)
	}
	return nil, domain.ErrInvalidArgument
}

type stubSettingsUC struct {
	GetStringFunc func(ctx context.Context, key string) (string, error)
	SetFunc       func(ctx context.Context, actorID, key, value string) error
	ListFunc      func(ctx context.Context) ([]*model.Setting, error)
}

var _ usecase.SettingsUseCase = (*stubSettingsUC)(nil)

func (s *stubSettingsUC) GetString(ctx context.Context, key string) (string, error) {
	if s.GetStringFunc != nil {
		return s.GetStringFunc(ctx, key)
	}
	return "", domain.ErrNotFound
}

func (s *stubSettingsUC) CreditsPerSong(ctx context.Context) int { return 1 }

func (s *stubSettingsUC) ProviderAPIKey(ctx context.Context) (string, error) {
	return "", domain.ErrConfigMissing
}

func (s *stubSettingsUC) Set(ctx context.Context, actorID, key, value string) error {
	if s.SetFunc != nil {
		return s.SetFunc(ctx, actorID, key, value)
	}
	return nil
}

func (s *stubSettingsUC) List(ctx context.Context) ([]*model.Setting, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx)
	}
	return nil, nil
}

// serverDeps bundles the stubs behind a ready-to-route Server.
type serverDeps struct {
	accounts *stubAccountUC
	songs    *stubSongUC
	credits  *stubCreditUC
	lyrics   *stubLyricsUC
	media    *stubMediaUC
	settings *stubSettingsUC
	auth     *AuthManager
	server   *Server
}

func newServerDeps() *serverDeps {
	d := &serverDeps{
		accounts: &stubAccountUC{},
		songs:    &stubSongUC{},
		credits:  &stubCreditUC{},
		lyrics:   &stubLyricsUC{},
		media:    &stubMediaUC{},
		settings: &stubSettingsUC{},
		auth:     newTestAuth(),
	}
	logger := zerolog.Nop()
	d.server = NewServer(d.accounts, d.songs, d.credits, d.lyrics, d.media, d.settings, d.auth, nil, nil, nil, "", &logger)
	return d
}
