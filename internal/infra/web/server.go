package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"school-song-portal/internal/infra/redis"
	"school-song-portal/internal/usecase"
)

type ctxKey int

const claimsKey ctxKey = iota

// claimsFrom returns the verified session claims the auth middleware
// stored on the request context.
func claimsFrom(ctx context.Context) *SessionClaims {
	c, _ := ctx.Value(claimsKey).(*SessionClaims)
	return c
}

type Server struct {
	accountUC  usecase.AccountUseCase
	songUC     usecase.SongUseCase
	creditUC   usecase.CreditUseCase
	lyricsUC   usecase.LyricsUseCase
	mediaUC    usecase.MediaUseCase
	settingsUC usecase.SettingsUseCase
	auth       *AuthManager
	limiter    *redis.RateLimiter
	locker     redis.Locker
	pollCache  *redis.PollCache
	mediaDir   string // static file root for processed audio, "" disables
	log        *zerolog.Logger
}

func NewServer(
	accountUC usecase.AccountUseCase,
	songUC usecase.SongUseCase,
	creditUC usecase.CreditUseCase,
	lyricsUC usecase.LyricsUseCase,
	mediaUC usecase.MediaUseCase,
	settingsUC usecase.SettingsUseCase,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	locker redis.Locker,
	pollCache *redis.PollCache,
	mediaDir string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "Web").Logger()
	return &Server{
		accountUC:  accountUC,
		songUC:     songUC,
		creditUC:   creditUC,
		lyricsUC:   lyricsUC,
		mediaUC:    mediaUC,
		settingsUC: settingsUC,
		auth:       auth,
		limiter:    limiter,
		locker:     locker,
		pollCache:  pollCache,
		mediaDir:   mediaDir,
		log:        &l,
	}
}

// Router builds the portal API. Students manage their own songs and
// credits; everything under /admin requires the teacher role.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.mediaDir != "" {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir)))
		r.Get("/media/*", fs.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Provider push notifications. Unauthenticated: the payload only
		// names a task id and the poll path re-verifies everything.
		r.Post("/songs/callback", s.handleProviderCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)

			r.With(s.rateLimit("submit", 5, time.Minute)).Post("/songs", s.handleSubmitSong)
			r.Get("/songs", s.handleListSongs)
			r.Get("/songs/{id}", s.handleGetSong)
			r.Delete("/songs/{id}", s.handleDeleteSong)
			r.Get("/songs/task/{taskID}/status", s.handlePollTask)

			r.With(s.rateLimit("submit", 5, time.Minute)).Post("/covers", s.handleSubmitCover)
			r.With(s.oneMediaJob).Post("/covers/youtube", s.handleYouTubeCover)
			r.With(s.oneMediaJob).Post("/media/process", s.handleProcessUpload)

			r.With(s.rateLimit("lyrics", 10, time.Minute)).Post("/lyrics", s.handleGenerateLyrics)
			r.Post("/transcribe", s.handleTranscribe)

			r.Get("/credits", s.handleCredits)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireTeacher)

				r.Get("/students", s.handleListStudents)
				r.Post("/students", s.handleCreateStudent)
				r.Post("/students/{id}/approve", s.handleApproveStudent)
				r.Post("/students/{id}/credits", s.handleAddCredits)
				r.Get("/students/{id}/history", s.handleStudentHistory)

				r.Get("/settings", s.handleListSettings)
				r.Put("/settings/{key}", s.handleSetSetting)
			})
		})
	})

	return r
}

// requireAuth verifies the session and stashes its claims on the context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || !claims.IsTeacher() {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// oneMediaJob serialises the heavy ffmpeg and download endpoints so a
// single user cannot run more than one at a time. A nil locker (dev runs
// without Redis) lets everything through.
func (s *Server) oneMediaJob(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.locker == nil {
			next.ServeHTTP(w, r)
			return
		}
		claims := claimsFrom(r.Context())
		key := "media_lock:" + claims.UserID()
		token, err := s.locker.TryLock(r.Context(), key, 10*time.Minute)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), key, token); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("media lock release failed")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit caps an action per user with a fixed window. A nil limiter
// (dev runs without Redis) lets everything through.
func (s *Server) rateLimit(action string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims := claimsFrom(r.Context())
			key := redis.UserActionKey(claims.UserID(), action)
			ok, err := s.limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusTooManyRequests, "Too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
