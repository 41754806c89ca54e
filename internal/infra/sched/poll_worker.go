package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school-song-portal/internal/infra/worker"
	"school-song-portal/internal/usecase"
)

// PollWorker periodically sweeps songs stuck in `generating` and
// reconciles them against the provider. This covers students who closed
// the browser before their song finished, and provider callbacks that
// never arrived.
type PollWorker struct {
	songUC   usecase.SongUseCase
	pool     *worker.Pool
	interval time.Duration
	batch    int
	log      *zerolog.Logger
}

func NewPollWorker(songUC usecase.SongUseCase, pool *worker.Pool, interval time.Duration, batch int, logger *zerolog.Logger) *PollWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 20
	}
	l := logger.With().Str("component", "PollWorker").Logger()
	return &PollWorker{songUC: songUC, pool: pool, interval: interval, batch: batch, log: &l}
}

func (w *PollWorker) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PollWorker) tick(ctx context.Context) {
	songs, err := w.songUC.ListGenerating(ctx, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list in-flight songs failed")
		return
	}
	for _, song := range songs {
		taskID := song.TaskID
		task := func(ctx context.Context) error {
			// Empty caller id marks this as a trusted internal poll.
			_, err := w.songUC.Poll(ctx, taskID, "")
			return err
		}
		if err := w.pool.Submit(task); err != nil {
			w.log.Warn().Err(err).Str("task_id", taskID).Msg("poll submit dropped")
		}
	}
}
