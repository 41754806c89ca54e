//go:build !integration

// File: internal/usecase/song_uc_test.go
package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/domain/ports/repository"
	"school-song-portal/internal/usecase"
)

// songUCTestDeps holds all the mock dependencies for the song use case tests.
type songUCTestDeps struct {
	songs    *MockSongRepo
	accounts *MockAccountRepo
	ledger   *MockLedgerRepo
	settings *MockSettingRepo
	music    *MockMusicAdapter
	tm       *MockTxManager
	uc       usecase.SongUseCase
}

func newSongUCDeps() *songUCTestDeps {
	deps := &songUCTestDeps{
		songs:    NewMockSongRepo(),
		accounts: NewMockAccountRepo(),
		ledger:   NewMockLedgerRepo(),
		settings: NewMockSettingRepo(),
		music:    &MockMusicAdapter{},
		tm:       NewMockTxManager(),
	}
	settingsUC := usecase.NewSettingsUseCase(deps.settings, deps.accounts, map[string]string{
		model.SettingCreditsPerSong: "1",
	})
	deps.uc = usecase.NewSongUseCase(
		deps.songs, deps.accounts, deps.ledger, settingsUC, deps.music, deps.tm,
		"http://localhost:8080/api/v1/songs/callback", newTestLogger(),
	)
	return deps
}

func seedStudent(t *testing.T, deps *songUCTestDeps, id string, credits int) {
	t.Helper()
	err := deps.accounts.Save(context.Background(), nil, &model.Account{
		ID:       id,
		Username: "student-" + id,
		Role:     model.RoleStudent,
		Credits:  credits,
		Approved: true,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func submitOK(t *testing.T, deps *songUCTestDeps, userID string) *model.Song {
	t.Helper()
	song, err := deps.uc.Submit(context.Background(), userID, usecase.SubmitSongInput{
		Title:  "Morning Bell",
		Lyrics: "[VERSE 1]\nring ring",
		Style:  "pop",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return song
}

func TestSongUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("debits one credit and records the deduction on success", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)

		// --- Act ---
		song := submitOK(t, deps, "user-1")

		// --- Assert ---
		if song.Status != model.SongStatusGenerating {
			t.Errorf("expected status 'generating', got '%s'", song.Status)
		}
		if song.TaskID != "task-1" {
			t.Errorf("expected task id 'task-1', got '%s'", song.TaskID)
		}
		if got := deps.accounts.Balance("user-1"); got != 4 {
			t.Errorf("expected balance 4, got %d", got)
		}
		entries := deps.ledger.All()
		if len(entries) != 1 {
			t.Fatalf("expected exactly one ledger entry, got %d", len(entries))
		}
		e := entries[0]
		if e.Amount != -1 || e.Type != model.LedgerEntryDeduct || e.SongID != song.ID {
			t.Errorf("unexpected deduct entry: amount=%d type=%s song=%s", e.Amount, e.Type, e.SongID)
		}
	})

	t.Run("refuses when the balance does not cover the price", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 0)

		// --- Act ---
		_, err := deps.uc.Submit(ctx, "user-1", usecase.SubmitSongInput{Title: "x", Lyrics: "y"})

		// --- Assert ---
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		if got := deps.accounts.Balance("user-1"); got != 0 {
			t.Errorf("balance changed to %d", got)
		}
		if len(deps.ledger.All()) != 0 {
			t.Error("expected no ledger entries")
		}
		if songs, _ := deps.songs.ListByUser(ctx, nil, "user-1", 0, 10); len(songs) != 0 {
			t.Errorf("expected no song rows, got %d", len(songs))
		}
	})

	t.Run("keeps the balance when the provider rejects the task", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 3)
		deps.music.SubmitSongFunc = func(ctx context.Context, p adapter.SubmitParams) (string, error) {
			return "", errors.New("provider code 430: insufficient provider quota")
		}

		// --- Act ---
		song, err := deps.uc.Submit(ctx, "user-1", usecase.SubmitSongInput{Title: "x", Lyrics: "y"})

		// --- Assert ---
		if !errors.Is(err, domain.ErrProviderRejected) {
			t.Fatalf("expected ErrProviderRejected, got %v", err)
		}
		if song == nil || song.Status != model.SongStatusFailed {
			t.Fatal("expected a failed song row for the student to inspect")
		}
		if got := deps.accounts.Balance("user-1"); got != 3 {
			t.Errorf("expected untouched balance 3, got %d", got)
		}
		if len(deps.ledger.All()) != 0 {
			t.Error("expected no ledger entries for a rejected submission")
		}
	})

	t.Run("requires lyrics unless the song is instrumental", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 3)

		// --- Act ---
		_, vocalErr := deps.uc.Submit(ctx, "user-1", usecase.SubmitSongInput{Title: "x"})
		_, instErr := deps.uc.Submit(ctx, "user-1", usecase.SubmitSongInput{Title: "x", Instrumental: true})

		// --- Assert ---
		if !errors.Is(vocalErr, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty lyrics, got %v", vocalErr)
		}
		if instErr != nil {
			t.Errorf("instrumental submission should not need lyrics: %v", instErr)
		}
	})

	t.Run("reads the price from settings", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		deps.settings.Set(ctx, nil, &model.Setting{Key: model.SettingCreditsPerSong, Value: "3"})

		// --- Act ---
		song := submitOK(t, deps, "user-1")

		// --- Assert ---
		if song.CreditsUsed != 3 {
			t.Errorf("expected credits_used 3, got %d", song.CreditsUsed)
		}
		if got := deps.accounts.Balance("user-1"); got != 2 {
			t.Errorf("expected balance 2, got %d", got)
		}
	})

	t.Run("leaves a failed row and no debit when the debit transaction fails", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		deps.ledger.AppendFunc = func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
			return errors.New("disk full")
		}
		// --- Act ---
		song, err := deps.uc.Submit(ctx, "user-1", usecase.SubmitSongInput{Title: "x", Lyrics: "y"})

		// --- Assert ---
		if err == nil {
			t.Fatal("expected an error")
		}
		if song == nil || song.Status != model.SongStatusFailed {
			t.Fatal("expected a failed song row")
		}
		if song.TaskID != "" {
			t.Error("a failed submission must not keep the provider task id")
		}
	})
}

func TestSongUseCase_SubmitCover(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards the source audio and debits like an original", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 2)
		var gotParams adapter.CoverParams
		deps.music.SubmitCoverFunc = func(ctx context.Context, p adapter.CoverParams) (string, error) {
			gotParams = p
			return "task-9", nil
		}

		// --- Act ---
		song, err := deps.uc.SubmitCover(ctx, "user-1", usecase.SubmitCoverInput{
			SourceUploadURL: "http://localhost:8080/media/cover-user-1.mp3",
			Prompt:          "happy birthday in rock style",
			Style:           "rock",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if song.Kind != model.SongKindCover {
			t.Errorf("expected kind 'cover', got '%s'", song.Kind)
		}
		if song.Title != "Cover Song" {
			t.Errorf("expected default title, got '%s'", song.Title)
		}
		if gotParams.UploadURL != "http://localhost:8080/media/cover-user-1.mp3" {
			t.Errorf("source url not forwarded: %q", gotParams.UploadURL)
		}
		if got := deps.accounts.Balance("user-1"); got != 1 {
			t.Errorf("expected balance 1, got %d", got)
		}
	})

	t.Run("rejects a cover without source audio", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 2)

		// --- Act ---
		_, err := deps.uc.SubmitCover(ctx, "user-1", usecase.SubmitCoverInput{Prompt: "x"})

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSongUseCase_Poll(t *testing.T) {
	ctx := context.Background()

	t.Run("completes the song with both renditions and a rounded duration", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return &adapter.TaskInfo{
				TaskID: taskID,
				Status: adapter.TaskStatusSuccess,
				Tracks: []adapter.Track{
					{Title: "Morning Bell", AudioURL: "https://cdn.example.com/a.mp3", DurationSeconds: 125.7},
					{Title: "Morning Bell", AudioURL: "https://cdn.example.com/b.mp3", DurationSeconds: 131.2},
				},
			}, nil
		}

		// --- Act ---
		res, err := deps.uc.Poll(ctx, song.TaskID, "user-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.State != model.SongStatusCompleted {
			t.Fatalf("expected 'completed', got '%s'", res.State)
		}
		if res.AudioURL != "https://cdn.example.com/a.mp3" || res.AudioURL2 != "https://cdn.example.com/b.mp3" {
			t.Errorf("unexpected rendition urls: %q %q", res.AudioURL, res.AudioURL2)
		}
		if res.Duration != 126 {
			t.Errorf("expected duration 126, got %d", res.Duration)
		}
		if got := deps.accounts.Balance("user-1"); got != 4 {
			t.Errorf("completion must not change the balance, got %d", got)
		}
	})

	t.Run("refunds exactly once when the provider reports failure", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return &adapter.TaskInfo{
				TaskID:       taskID,
				Status:       adapter.TaskStatusGenerateAudioFailed,
				ErrorMessage: "generation failed upstream",
			}, nil
		}

		// --- Act ---
		first, err1 := deps.uc.Poll(ctx, song.TaskID, "user-1")
		second, err2 := deps.uc.Poll(ctx, song.TaskID, "user-1")

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("expected no errors, got %v / %v", err1, err2)
		}
		if first.State != model.SongStatusFailed || second.State != model.SongStatusFailed {
			t.Fatalf("expected both polls to report 'failed'")
		}
		if first.ErrorText != "generation failed upstream" {
			t.Errorf("unexpected error text %q", first.ErrorText)
		}
		if got := deps.accounts.Balance("user-1"); got != 5 {
			t.Errorf("expected the debit reversed back to 5, got %d", got)
		}
		entries := deps.ledger.All()
		if len(entries) != 2 {
			t.Fatalf("expected deduct + one refund, got %d entries", len(entries))
		}
		if entries[1].Type != model.LedgerEntryAdd || entries[1].Amount != song.CreditsUsed {
			t.Errorf("unexpected refund entry: type=%s amount=%d", entries[1].Type, entries[1].Amount)
		}
	})

	t.Run("refunds exactly once when polls race on the same failing task", func(t *testing.T) {
		// The background sweep and a refreshing browser can poll the same
		// task at the same moment. Both see the failure before either has
		// flipped the row; only one may append the compensating entry.

		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")

		var barrier sync.WaitGroup
		barrier.Add(2)
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			// Hold both pollers here so neither reaches the refund
			// transaction before the other has read the failure.
			barrier.Done()
			barrier.Wait()
			return &adapter.TaskInfo{
				TaskID: taskID,
				Status: adapter.TaskStatusGenerateAudioFailed,
			}, nil
		}

		// --- Act ---
		var wg sync.WaitGroup
		errs := make([]error, 2)
		states := make([]model.SongStatus, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := deps.uc.Poll(ctx, song.TaskID, "user-1")
				errs[i] = err
				if res != nil {
					states[i] = res.State
				}
			}(i)
		}
		wg.Wait()

		// --- Assert ---
		for i, err := range errs {
			if err != nil {
				t.Fatalf("poll %d: %v", i, err)
			}
			if states[i] != model.SongStatusFailed {
				t.Errorf("poll %d: expected 'failed', got %q", i, states[i])
			}
		}
		if got := deps.accounts.Balance("user-1"); got != 5 {
			t.Errorf("expected balance restored to 5 exactly once, got %d", got)
		}
		if entries := deps.ledger.All(); len(entries) != 2 {
			t.Fatalf("expected deduct + one refund (2 entries), got %d", len(entries))
		}
	})

	t.Run("keeps generating on first success and unknown statuses", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")

		for _, status := range []string{adapter.TaskStatusFirstSuccess, adapter.TaskStatusPending, "TEXT_SUCCESS"} {
			deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
				return &adapter.TaskInfo{TaskID: taskID, Status: status}, nil
			}

			// --- Act ---
			res, err := deps.uc.Poll(ctx, song.TaskID, "user-1")

			// --- Assert ---
			if err != nil {
				t.Fatalf("status %s: %v", status, err)
			}
			if res.State != model.SongStatusGenerating {
				t.Errorf("status %s: expected 'generating', got '%s'", status, res.State)
			}
		}
		if got := deps.accounts.Balance("user-1"); got != 4 {
			t.Errorf("in-progress polls must not move the balance, got %d", got)
		}
	})

	t.Run("a completed song stays completed on re-poll", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return &adapter.TaskInfo{
				TaskID: taskID,
				Status: adapter.TaskStatusSuccess,
				Tracks: []adapter.Track{{AudioURL: "https://cdn.example.com/a.mp3", DurationSeconds: 60}},
			}, nil
		}
		if _, err := deps.uc.Poll(ctx, song.TaskID, "user-1"); err != nil {
			t.Fatalf("first poll: %v", err)
		}

		// --- Act ---
		res, err := deps.uc.Poll(ctx, song.TaskID, "user-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.State != model.SongStatusCompleted {
			t.Errorf("expected 'completed', got '%s'", res.State)
		}
		if len(deps.ledger.All()) != 1 {
			t.Error("re-poll must not write ledger entries")
		}
	})

	t.Run("a failed song is not resurrected by a late success", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return &adapter.TaskInfo{TaskID: taskID, Status: adapter.TaskStatusCallbackException}, nil
		}
		if _, err := deps.uc.Poll(ctx, song.TaskID, "user-1"); err != nil {
			t.Fatalf("failing poll: %v", err)
		}
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return &adapter.TaskInfo{
				TaskID: taskID,
				Status: adapter.TaskStatusSuccess,
				Tracks: []adapter.Track{{AudioURL: "https://cdn.example.com/a.mp3", DurationSeconds: 60}},
			}, nil
		}

		// --- Act ---
		res, err := deps.uc.Poll(ctx, song.TaskID, "user-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.State != model.SongStatusFailed {
			t.Errorf("expected the song to stay 'failed', got '%s'", res.State)
		}
		if got := deps.accounts.Balance("user-1"); got != 5 {
			t.Errorf("expected the refunded balance 5 to stand, got %d", got)
		}
	})

	t.Run("rejects a poll by a different student", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		seedStudent(t, deps, "user-2", 5)
		song := submitOK(t, deps, "user-1")

		// --- Act ---
		_, err := deps.uc.Poll(ctx, song.TaskID, "user-2")

		// --- Assert ---
		if !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("an internal poll with no caller passes the ownership check", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")

		// --- Act ---
		res, err := deps.uc.Poll(ctx, song.TaskID, "")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.State != model.SongStatusGenerating {
			t.Errorf("expected 'generating', got '%s'", res.State)
		}
	})

	t.Run("wraps provider fetch failures", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")
		deps.music.FetchTaskFunc = func(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
			return nil, errors.New("502 bad gateway")
		}

		// --- Act ---
		_, err := deps.uc.Poll(ctx, song.TaskID, "user-1")

		// --- Assert ---
		if !errors.Is(err, domain.ErrProviderPollFailed) {
			t.Fatalf("expected ErrProviderPollFailed, got %v", err)
		}
	})
}

func TestSongUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the song but keeps the ledger and balance", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		song := submitOK(t, deps, "user-1")

		// --- Act ---
		err := deps.uc.Delete(ctx, song.ID, "user-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := deps.songs.FindByID(ctx, nil, song.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Error("expected the song row to be gone")
		}
		if got := deps.accounts.Balance("user-1"); got != 4 {
			t.Errorf("delete must not refund, balance is %d", got)
		}
		if entries, _ := deps.ledger.ListBySong(ctx, nil, song.ID); len(entries) != 1 {
			t.Errorf("expected the deduct entry to survive, got %d entries", len(entries))
		}
	})

	t.Run("rejects deletion by a non-owner", func(t *testing.T) {
		// --- Arrange ---
		deps := newSongUCDeps()
		seedStudent(t, deps, "user-1", 5)
		seedStudent(t, deps, "user-2", 5)
		song := submitOK(t, deps, "user-1")

		// --- Act ---
		err := deps.uc.Delete(ctx, song.ID, "user-2")

		// --- Assert ---
		if !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})
}

func TestSongUseCase_ListGenerating(t *testing.T) {
	// --- Arrange ---
	deps := newSongUCDeps()
	seedStudent(t, deps, "user-1", 5)
	now := time.Now()
	deps.songs.Save(context.Background(), nil, &model.Song{
		ID: "s1", UserID: "user-1", TaskID: "t1", Status: model.SongStatusGenerating, CreatedAt: now,
	})
	deps.songs.Save(context.Background(), nil, &model.Song{
		ID: "s2", UserID: "user-1", Status: model.SongStatusPending, CreatedAt: now,
	})
	deps.songs.Save(context.Background(), nil, &model.Song{
		ID: "s3", UserID: "user-1", TaskID: "t3", Status: model.SongStatusCompleted, CreatedAt: now,
	})

	// --- Act ---
	songs, err := deps.uc.ListGenerating(context.Background(), 10)

	// --- Assert ---
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(songs) != 1 || songs[0].ID != "s1" {
		t.Fatalf("expected only the in-flight song with a task id, got %d", len(songs))
	}
}
