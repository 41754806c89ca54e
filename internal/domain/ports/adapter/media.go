package adapter

import (
	"context"
	"io"
)

// MediaStore persists processed audio and serves it back over HTTP.
type MediaStore interface {
	// Save writes the content under filename and returns its public URL.
	Save(filename string, r io.Reader) (string, error)
	// SaveFile moves an existing file into the store.
	SaveFile(filename, srcPath string) (string, error)
	// Path returns the on-disk location for a stored filename.
	Path(filename string) string
}

// AudioProcessor transforms audio files on disk.
type AudioProcessor interface {
	// AdjustAudio re-renders input with a pitch shift in semitones and a
	// playback speed multiplier.
	AdjustAudio(ctx context.Context, inputPath, outputPath string, pitchSemitones int, speed float64) error
	// PitchShift raises or lowers pitch without changing tempo.
	PitchShift(ctx context.Context, inputPath, outputPath string, semitones int) error
}

// DownloadedSource describes an audio file fetched from an external site.
type DownloadedSource struct {
	Path            string
	Title           string
	DurationSeconds int
}

// SourceDownloader fetches source audio for cover songs.
type SourceDownloader interface {
	Download(ctx context.Context, url, outputDir string) (*DownloadedSource, error)
}
