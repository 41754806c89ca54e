//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/domain/ports/repository"
)

// ---- Accounts ----

// MockAccountRepo is a small in-memory implementation used by unit tests.
// Assign the *Func fields to override individual calls.
type MockAccountRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Account

	SaveFunc          func(ctx context.Context, tx repository.Tx, a *model.Account) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	DeductCreditsFunc func(ctx context.Context, tx repository.Tx, id string, amount int) (bool, error)
	AddCreditsFunc    func(ctx context.Context, tx repository.Tx, id string, amount int) (int, error)
}

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{store: make(map[string]*model.Account)}
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func (m *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.store {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Account
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockAccountRepo) SetApproved(ctx context.Context, tx repository.Tx, id string, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Approved = approved
	return nil
}

func (m *MockAccountRepo) DeductCredits(ctx context.Context, tx repository.Tx, id string, amount int) (bool, error) {
	if m.DeductCreditsFunc != nil {
		return m.DeductCreditsFunc(ctx, tx, id, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.Credits < amount {
		return false, nil
	}
	a.Credits -= amount
	return true, nil
}

func (m *MockAccountRepo) AddCredits(ctx context.Context, tx repository.Tx, id string, amount int) (int, error) {
	if m.AddCreditsFunc != nil {
		return m.AddCreditsFunc(ctx, tx, id, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	a.Credits += amount
	return a.Credits, nil
}

// Balance reads the stored balance directly, bypassing any Func override.
func (m *MockAccountRepo) Balance(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.store[id]; ok {
		return a.Credits
	}
	return 0
}

// ---- Songs ----

type MockSongRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Song

	SaveFunc       func(ctx context.Context, tx repository.Tx, s *model.Song) error
	DeleteFunc     func(ctx context.Context, tx repository.Tx, id string) error
	MarkFailedFunc func(ctx context.Context, tx repository.Tx, id, errorMessage string) (bool, error)
}

func NewMockSongRepo() *MockSongRepo {
	return &MockSongRepo{store: make(map[string]*model.Song)}
}

var _ repository.SongRepository = (*MockSongRepo)(nil)

func (m *MockSongRepo) Save(ctx context.Context, tx repository.Tx, s *model.Song) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSongRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSongRepo) FindByTaskID(ctx context.Context, tx repository.Tx, taskID string) (*model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.TaskID == taskID && taskID != "" {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSongRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Song
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSongRepo) ListGenerating(ctx context.Context, tx repository.Tx, limit int) ([]*model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Song
	for _, s := range m.store {
		if s.TaskID != "" && !s.IsTerminal() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// MarkFailed is check-and-set under one lock, like the conditional UPDATE
// it stands in for: at most one concurrent caller gets true per song.
func (m *MockSongRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, errorMessage string) (bool, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, id, errorMessage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.IsTerminal() {
		return false, nil
	}
	s.Status = model.SongStatusFailed
	s.ErrorMessage = errorMessage
	return true, nil
}

func (m *MockSongRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// ---- Ledger ----

type MockLedgerRepo struct {
	mu      sync.RWMutex
	entries []*model.LedgerEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error
}

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{}
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func (m *MockLedgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockLedgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- { // newest first, like the real repo
		if m.entries[i].UserID == userID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLedgerRepo) ListBySong(ctx context.Context, tx repository.Tx, songID string) ([]*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LedgerEntry
	for _, e := range m.entries {
		if e.SongID == songID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// All returns a snapshot of every entry in append order.
func (m *MockLedgerRepo) All() []*model.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.LedgerEntry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// ---- Settings ----

type MockSettingRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Setting
}

func NewMockSettingRepo() *MockSettingRepo {
	return &MockSettingRepo{store: make(map[string]*model.Setting)}
}

var _ repository.SettingRepository = (*MockSettingRepo)(nil)

func (m *MockSettingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSettingRepo) Set(ctx context.Context, tx repository.Tx, s *model.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.Key] = &cp
	return nil
}

func (m *MockSettingRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Setting
	for _, s := range m.store {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Assign
// WithTxFunc to verify transactional behavior in specific tests.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Music adapter ----

type MockMusicAdapter struct {
	SubmitSongFunc  func(ctx context.Context, p adapter.SubmitParams) (string, error)
	SubmitCoverFunc func(ctx context.Context, p adapter.CoverParams) (string, error)
	FetchTaskFunc   func(ctx context.Context, taskID string) (*adapter.TaskInfo, error)
}

var _ adapter.MusicGenerationAdapter = (*MockMusicAdapter)(nil)

func (m *MockMusicAdapter) SubmitSong(ctx context.Context, p adapter.SubmitParams) (string, error) {
	if m.SubmitSongFunc != nil {
		return m.SubmitSongFunc(ctx, p)
	}
	return "task-1", nil
}

func (m *MockMusicAdapter) SubmitCover(ctx context.Context, p adapter.CoverParams) (string, error) {
	if m.SubmitCoverFunc != nil {
		return m.SubmitCoverFunc(ctx, p)
	}
	return "task-1", nil
}

func (m *MockMusicAdapter) FetchTask(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
	if m.FetchTaskFunc != nil {
		return m.FetchTaskFunc(ctx, taskID)
	}
	return &adapter.TaskInfo{TaskID: taskID, Status: adapter.TaskStatusPending}, nil
}

// ---- Lyrics adapters ----

type MockLyricsWriter struct {
	GenerateLyricsFunc func(ctx context.Context, prompt string) (*adapter.LyricsDraft, error)
}

var _ adapter.LyricsAdapter = (*MockLyricsWriter)(nil)

func (m *MockLyricsWriter) Name() string { return "mock" }

func (m *MockLyricsWriter) GenerateLyrics(ctx context.Context, prompt string) (*adapter.LyricsDraft, error) {
	if m.GenerateLyricsFunc != nil {
		return m.GenerateLyricsFunc(ctx, prompt)
	}
	return &adapter.LyricsDraft{Title: "Test Song", Lyrics: "[VERSE 1]\nla la la", Style: "pop"}, nil
}

type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audioURL string) (string, error)
}

var _ adapter.TranscriptionAdapter = (*MockTranscriber)(nil)

func (m *MockTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audioURL)
	}
	return "la la la", nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
