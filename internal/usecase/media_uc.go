package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/infra/logging"
)

// Compile-time check
var _ MediaUseCase = (*mediaUC)(nil)

// CoverSource is a processed recording ready to submit as cover input.
type CoverSource struct {
	AudioURL        string
	Title           string
	DurationSeconds int
}

type MediaUseCase interface {
	// ProcessUpload re-renders an uploaded recording with the requested
	// speed and pitch and returns its public URL.
	ProcessUpload(ctx context.Context, userID, filename string, file io.Reader, speed float64, pitchSemitones int) (string, error)
	// PrepareYouTubeCover downloads a YouTube source, applies the pitch
	// shift and stores the result for cover generation.
	PrepareYouTubeCover(ctx context.Context, userID, youtubeURL string, pitchSemitones int) (*CoverSource, error)
}

type mediaUC struct {
	store      adapter.MediaStore
	processor  adapter.AudioProcessor
	downloader adapter.SourceDownloader
	log        *zerolog.Logger
}

func NewMediaUseCase(store adapter.MediaStore, processor adapter.AudioProcessor, downloader adapter.SourceDownloader, logger *zerolog.Logger) *mediaUC {
	l := logger.With().Str("component", "MediaUC").Logger()
	return &mediaUC{store: store, processor: processor, downloader: downloader, log: &l}
}

var allowedUploadExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".mp4": true}

func (u *mediaUC) ProcessUpload(ctx context.Context, userID, filename string, file io.Reader, speed float64, pitchSemitones int) (string, error) {
	defer logging.TraceDuration(u.log, "ProcessUpload")()

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExts[ext] {
		return "", fmt.Errorf("unsupported file type %q: %w", ext, domain.ErrInvalidArgument)
	}

	in, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer os.Remove(in.Name())
	if _, err := io.Copy(in, file); err != nil {
		in.Close()
		return "", fmt.Errorf("spool upload: %w", err)
	}
	in.Close()

	out := filepath.Join(os.TempDir(), "processed-"+uuid.NewString()+".mp3")
	defer os.Remove(out)
	if err := u.processor.AdjustAudio(ctx, in.Name(), out, pitchSemitones, speed); err != nil {
		return "", err
	}

	stored := fmt.Sprintf("processed-%s-%d.mp3", userID, time.Now().UnixMilli())
	url, err := u.store.SaveFile(stored, out)
	if err != nil {
		return "", fmt.Errorf("store processed audio: %w", err)
	}
	return url, nil
}

func (u *mediaUC) PrepareYouTubeCover(ctx context.Context, userID, youtubeURL string, pitchSemitones int) (*CoverSource, error) {
	defer logging.TraceDuration(u.log, "PrepareYouTubeCover")()

	if strings.TrimSpace(youtubeURL) == "" {
		return nil, fmt.Errorf("youtube url required: %w", domain.ErrInvalidArgument)
	}

	workDir, err := os.MkdirTemp("", "ytcover-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	src, err := u.downloader.Download(ctx, youtubeURL, workDir)
	if err != nil {
		return nil, err
	}

	outPath := src.Path
	if pitchSemitones != 0 {
		outPath = filepath.Join(workDir, "shifted-"+uuid.NewString()+".mp3")
		if err := u.processor.PitchShift(ctx, src.Path, outPath, pitchSemitones); err != nil {
			return nil, err
		}
	}

	stored := fmt.Sprintf("cover-%s-%d.mp3", userID, time.Now().UnixMilli())
	url, err := u.store.SaveFile(stored, outPath)
	if err != nil {
		return nil, fmt.Errorf("store cover source: %w", err)
	}
	return &CoverSource{AudioURL: url, Title: src.Title, DurationSeconds: src.DurationSeconds}, nil
}
