// File: internal/usecase/lyrics_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/infra/metrics"
)

// Compile-time check
var _ LyricsUseCase = (*lyricsUC)(nil)

type LyricsUseCase interface {
	// GenerateLyrics writes a full song draft (title, structured lyrics,
	// style tags) from a free-text theme.
	GenerateLyrics(ctx context.Context, theme string) (*adapter.LyricsDraft, error)
	// Transcribe extracts lyrics text from a song recording.
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

type lyricsUC struct {
	writer          adapter.LyricsAdapter
	transcriber     adapter.TranscriptionAdapter
	maxPromptTokens int
	log             *zerolog.Logger
}

func NewLyricsUseCase(writer adapter.LyricsAdapter, transcriber adapter.TranscriptionAdapter, maxPromptTokens int, logger *zerolog.Logger) *lyricsUC {
	l := logger.With().Str("component", "LyricsUC").Logger()
	return &lyricsUC{writer: writer, transcriber: transcriber, maxPromptTokens: maxPromptTokens, log: &l}
}

// lyricsPrompt instructs the model to produce a draft long enough for a
// 2-3 minute song, with structure tags the generation provider understands.
const lyricsPrompt = `You are a professional songwriter preparing a song for an AI music generator.

INPUT:
- Theme: %s

REQUIREMENTS:

1. TITLE: creative, memorable, in the language of the lyrics.

2. LYRICS:
   - Structure tags: [INTRO], [VERSE 1], [PRE-CHORUS], [CHORUS], [VERSE 2], [PRE-CHORUS], [CHORUS], [BRIDGE], [CHORUS], [OUTRO]
   - Put musical direction in English inside the brackets, e.g. [INTRO, gentle piano melody]
   - Rhyming, evocative lines; the song should run at least 2-3 minutes
   - 4-6 lines per verse and chorus, a 4-line bridge, 30-40 lines in total

3. STYLE: English only, comma separated genre, mood and instruments,
   e.g. "indie pop, dreamy, acoustic guitar"

Respond with a single JSON object:
{"title": "...", "lyrics": "...", "style": "..."}

Generate now:`

func (u *lyricsUC) GenerateLyrics(ctx context.Context, theme string) (*adapter.LyricsDraft, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, fmt.Errorf("theme required: %w", domain.ErrInvalidArgument)
	}

	prompt := fmt.Sprintf(lyricsPrompt, theme)
	if n := u.countTokens(prompt); n > u.maxPromptTokens {
		u.log.Warn().Int("tokens", n).Int("budget", u.maxPromptTokens).Msg("lyrics prompt over budget")
		return nil, fmt.Errorf("theme too long (%d tokens): %w", n, domain.ErrInvalidArgument)
	}

	draft, err := u.writer.GenerateLyrics(ctx, prompt)
	if err != nil {
		metrics.IncLyricsCall(u.writer.Name(), false)
		return nil, err
	}
	if strings.TrimSpace(draft.Lyrics) == "" {
		metrics.IncLyricsCall(u.writer.Name(), false)
		return nil, fmt.Errorf("writer returned empty lyrics")
	}
	metrics.IncLyricsCall(u.writer.Name(), true)
	return draft, nil
}

func (u *lyricsUC) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", fmt.Errorf("audio url required: %w", domain.ErrInvalidArgument)
	}
	if u.transcriber == nil {
		return "", domain.ErrConfigMissing
	}
	return u.transcriber.Transcribe(ctx, audioURL)
}

// countTokens is best effort: when the encoding is unavailable offline we
// fall back to a rough 4-characters-per-token estimate.
func (u *lyricsUC) countTokens(s string) int {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}
