// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"school-song-portal/internal/config"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/domain/ports/adapter"
	lyricsAdapters "school-song-portal/internal/infra/adapters/lyrics"
	musicAdapters "school-song-portal/internal/infra/adapters/music"
	pg "school-song-portal/internal/infra/db/postgres"
	"school-song-portal/internal/infra/logging"
	"school-song-portal/internal/infra/media"
	"school-song-portal/internal/infra/metrics"
	red "school-song-portal/internal/infra/redis"
	"school-song-portal/internal/infra/sched"
	"school-song-portal/internal/infra/web"
	"school-song-portal/internal/infra/worker"
	"school-song-portal/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop provider, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	var (
		rateLimiter *red.RateLimiter
		locker      red.Locker
		pollCache   *red.PollCache
	)
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		if !cfg.Runtime.Dev {
			log.Fatalf("redis: %v", err)
		}
		logger.Warn().Err(err).Msg("redis unavailable, running without rate limits and locks")
	} else {
		rateLimiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		pollCache = red.NewPollCache(redisClient, 5*time.Second)
		defer redisClient.Close()
	}

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepo(pool)
	songRepo := pg.NewSongRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	settingRepo := pg.NewSettingRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Settings (DB values win over these config defaults) ----
	settingsUC := usecase.NewSettingsUseCase(settingRepo, accountRepo, map[string]string{
		model.SettingCreditsPerSong: strconv.Itoa(cfg.Suno.CreditsPerSong),
		model.SettingSunoAPIKey:     cfg.Suno.APIKey,
		model.SettingAIProvider:     cfg.AI.Provider,
		model.SettingAIAPIKey:       cfg.AI.APIKey,
		model.SettingAIModel:        cfg.AI.Model,
		model.SettingGeminiAPIKey:   cfg.AI.GeminiKey,
	})

	// ---- Music adapter ----
	var music adapter.MusicGenerationAdapter
	if cfg.Runtime.Dev && cfg.Suno.APIKey == "" {
		music = musicAdapters.NewNoopAdapter()
		logger.Warn().Msg("music adapter: noop (dev run without suno.api_key)")
	} else {
		music, err = musicAdapters.NewKieAdapter(cfg.Suno.BaseURL, cfg.Suno.DefaultModel, settingsUC.ProviderAPIKey)
		if err != nil {
			log.Fatalf("music adapter: %v", err)
		}
		logger.Info().Str("base_url", cfg.Suno.BaseURL).Str("model", cfg.Suno.DefaultModel).Msg("music adapter: kie")
	}

	// ---- Lyrics adapter (openai | anthropic | gemini) ----
	var writer adapter.LyricsAdapter
	var transcriber adapter.TranscriptionAdapter
	switch strings.ToLower(cfg.AI.Provider) {
	case "anthropic":
		writer, err = lyricsAdapters.NewAnthropicAdapter(cfg.AI.APIKey, cfg.AI.Model)
	case "gemini":
		var ga *lyricsAdapters.GeminiAdapter
		ga, err = lyricsAdapters.NewGeminiAdapter(ctx, cfg.AI.APIKey, cfg.AI.Model)
		writer, transcriber = ga, ga
	default:
		writer, err = lyricsAdapters.NewOpenAIAdapter(cfg.AI.APIKey, cfg.AI.Model)
	}
	if err != nil {
		log.Fatalf("lyrics adapter (%s): %v", cfg.AI.Provider, err)
	}
	logger.Info().Str("provider", writer.Name()).Str("model", cfg.AI.Model).Msg("lyrics adapter ready")

	// Transcription always goes through Gemini; reuse the writer when it
	// already is one, otherwise bring up a dedicated client.
	if transcriber == nil && cfg.AI.GeminiKey != "" {
		ga, err := lyricsAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, "")
		if err != nil {
			log.Fatalf("gemini transcriber: %v", err)
		}
		transcriber = ga
	}
	if transcriber == nil {
		logger.Warn().Msg("no gemini key configured, transcription disabled")
	}

	// ---- Media pipeline ----
	store, err := media.NewDiskStore(cfg.Media.Dir, strings.TrimRight(cfg.Server.BaseURL, "/")+cfg.Media.PublicPathBase)
	if err != nil {
		log.Fatalf("media store: %v", err)
	}
	processor := media.NewFFmpegProcessor(cfg.Media.FFmpegPath, logger)
	downloader := media.NewYouTubeDownloader(cfg.Media.YtdlpPath, cfg.Media.MaxSourceSecs, logger)

	// ---- Use cases ----
	callbackURL := strings.TrimRight(cfg.Server.BaseURL, "/") + "/api/v1/songs/callback"
	accountUC := usecase.NewAccountUseCase(accountRepo, cfg.Signup.DefaultCredits, logger)
	songUC := usecase.NewSongUseCase(songRepo, accountRepo, ledgerRepo, settingsUC, music, txManager, callbackURL, logger)
	creditUC := usecase.NewCreditUseCase(accountRepo, ledgerRepo, txManager, logger)
	lyricsUC := usecase.NewLyricsUseCase(writer, transcriber, cfg.AI.MaxPromptTokens, logger)
	mediaUC := usecase.NewMediaUseCase(store, processor, downloader, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, !cfg.Runtime.Dev, "", cfg.Server.SessionTTL)
	srv := web.NewServer(accountUC, songUC, creditUC, lyricsUC, mediaUC, settingsUC, auth, rateLimiter, locker, pollCache, store.Dir(), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Poll reconciler ----
	pool2 := worker.NewPool(cfg.Poller.Workers)
	pool2.Start(ctx)
	poller := sched.NewPollWorker(songUC, pool2, cfg.Poller.Interval, cfg.Poller.Batch, logger)
	go poller.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	pool2.Stop()
}
