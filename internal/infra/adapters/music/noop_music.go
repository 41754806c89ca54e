package music

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.MusicGenerationAdapter = (*NoopAdapter)(nil)

// NoopAdapter implements adapter.MusicGenerationAdapter for local/dev
// runs without a provider key. Every task completes immediately.
type NoopAdapter struct {
	seq atomic.Int64
}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

func (a *NoopAdapter) SubmitSong(ctx context.Context, p adapter.SubmitParams) (string, error) {
	id := fmt.Sprintf("noop-task-%d", a.seq.Add(1))
	log.Printf("[noop-music] submit song %q as %s\n", p.Title, id)
	return id, nil
}

func (a *NoopAdapter) SubmitCover(ctx context.Context, p adapter.CoverParams) (string, error) {
	id := fmt.Sprintf("noop-task-%d", a.seq.Add(1))
	log.Printf("[noop-music] submit cover %q as %s\n", p.Title, id)
	return id, nil
}

func (a *NoopAdapter) FetchTask(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
	return &adapter.TaskInfo{
		TaskID: taskID,
		Status: adapter.TaskStatusSuccess,
		Tracks: []adapter.Track{
			{Title: "noop rendition", AudioURL: "https://example.invalid/noop.mp3", DurationSeconds: 60},
		},
	}, nil
}
