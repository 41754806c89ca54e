package adapter

import "context"

// LyricsDraft is the structured result of auto-writing a song from a theme.
type LyricsDraft struct {
	Title  string `json:"title"`
	Lyrics string `json:"lyrics"`
	Style  string `json:"style"`
}

// LyricsAdapter is the port for LLM-backed lyric writing.
type LyricsAdapter interface {
	Name() string
	GenerateLyrics(ctx context.Context, prompt string) (*LyricsDraft, error)
}

// TranscriptionAdapter extracts lyrics text from a song recording.
// Implemented by adapters whose provider accepts inline audio.
type TranscriptionAdapter interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
