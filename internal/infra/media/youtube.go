package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.SourceDownloader = (*YouTubeDownloader)(nil)

// YouTubeDownloader fetches audio with yt-dlp. Sources longer than
// maxSeconds are refused before any download starts, because the
// generation provider caps cover inputs at eight minutes.
type YouTubeDownloader struct {
	ytdlpPath  string
	maxSeconds int
	log        *zerolog.Logger
}

func NewYouTubeDownloader(ytdlpPath string, maxSeconds int, logger *zerolog.Logger) *YouTubeDownloader {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if maxSeconds <= 0 {
		maxSeconds = 480
	}
	l := logger.With().Str("component", "YouTubeDL").Logger()
	return &YouTubeDownloader{ytdlpPath: ytdlpPath, maxSeconds: maxSeconds, log: &l}
}

func (d *YouTubeDownloader) Download(ctx context.Context, url, outputDir string) (*adapter.DownloadedSource, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	title, duration, err := d.probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if duration > d.maxSeconds {
		return nil, fmt.Errorf("source runs %ds, limit is %ds: %w", duration, d.maxSeconds, domain.ErrInvalidArgument)
	}

	args := []string{
		url,
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", filepath.Join(outputDir, "%(id)s.%(ext)s"),
		"--no-warnings",
		"--no-part",
		"--no-mtime",
		"--no-cache-dir",
		"--geo-bypass",
		"--print", "after_move:filepath",
	}
	cmd := exec.CommandContext(ctx, d.ytdlpPath, args...)
	// Force UTF-8 subprocess output so non-ASCII paths survive intact.
	cmd.Env = append(os.Environ(), "PYTHONUTF8=1", "PYTHONIOENCODING=utf-8")

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("yt-dlp failed: %w\n%s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return nil, fmt.Errorf("yt-dlp produced no file")
	}
	// Re-join the sanitised basename with the directory Go already holds
	// as a correct UTF-8 string.
	path := filepath.Join(outputDir, filepath.Base(line))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("downloaded file missing: %w", err)
	}

	d.log.Info().Str("title", title).Int("duration_s", duration).Msg("source downloaded")
	return &adapter.DownloadedSource{Path: path, Title: title, DurationSeconds: duration}, nil
}

// probe reads title and duration without downloading.
func (d *YouTubeDownloader) probe(ctx context.Context, url string) (string, int, error) {
	cmd := exec.CommandContext(ctx, d.ytdlpPath,
		url, "--no-playlist", "--no-download", "--no-warnings",
		"--print", "title", "--print", "duration")
	cmd.Env = append(os.Environ(), "PYTHONUTF8=1", "PYTHONIOENCODING=utf-8")

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", 0, fmt.Errorf("yt-dlp probe failed: %w\n%s", err, string(exitErr.Stderr))
		}
		return "", 0, fmt.Errorf("yt-dlp probe failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return "", 0, fmt.Errorf("unexpected probe output %q", string(out))
	}
	title := strings.TrimSpace(lines[0])
	// yt-dlp prints duration as seconds, occasionally fractional.
	durStr := strings.TrimSpace(lines[1])
	duration, err := strconv.ParseFloat(durStr, 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse duration %q: %w", durStr, err)
	}
	return title, int(duration), nil
}
