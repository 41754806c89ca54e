package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"school-song-portal/internal/domain"
	"school-song-portal/internal/domain/model"
	"school-song-portal/internal/usecase"
)

// ===== JSON plumbing =====

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unmapped is a 500 with a generic message so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, "Insufficient credits")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, domain.ErrNotApproved):
		writeError(w, http.StatusForbidden, "Account is awaiting teacher approval")
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, domain.ErrLocked):
		writeError(w, http.StatusConflict, "Another operation is in progress")
	case errors.Is(err, domain.ErrConfigMissing):
		writeError(w, http.StatusInternalServerError, "Provider is not configured")
	case errors.Is(err, domain.ErrProviderRejected), errors.Is(err, domain.ErrProviderPollFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50 // Default page size
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// ===== Response views =====

type accountView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Credits   int       `json:"credits"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountView(a *model.Account) accountView {
	return accountView{
		ID:        a.ID,
		Username:  a.Username,
		FullName:  a.FullName,
		Role:      string(a.Role),
		Credits:   a.Credits,
		Approved:  a.Approved,
		CreatedAt: a.CreatedAt,
	}
}

type songView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Lyrics           string    `json:"lyrics"`
	Style            string    `json:"style"`
	Kind             string    `json:"kind"`
	TaskID           string    `json:"task_id,omitempty"`
	Status           string    `json:"status"`
	AudioURL         string    `json:"audio_url,omitempty"`
	AudioURL2        string    `json:"audio_url_2,omitempty"`
	DurationSeconds  int       `json:"duration_seconds,omitempty"`
	CreditsUsed      int       `json:"credits_used"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	SourceYouTubeURL string    `json:"source_youtube_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toSongView(s *model.Song) songView {
	return songView{
		ID:               s.ID,
		Title:            s.Title,
		Lyrics:           s.Lyrics,
		Style:            s.Style,
		Kind:             string(s.Kind),
		TaskID:           s.TaskID,
		Status:           string(s.Status),
		AudioURL:         s.AudioURL,
		AudioURL2:        s.AudioURL2,
		DurationSeconds:  s.DurationSeconds,
		CreditsUsed:      s.CreditsUsed,
		ErrorMessage:     s.ErrorMessage,
		SourceYouTubeURL: s.SourceYouTubeURL,
		CreatedAt:        s.CreatedAt,
	}
}

type ledgerView struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
	SongID    string    `json:"song_id,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toLedgerViews(entries []*model.LedgerEntry) []ledgerView {
	out := make([]ledgerView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerView{
			ID:        e.ID,
			Amount:    e.Amount,
			Type:      string(e.Type),
			Reason:    e.Reason,
			SongID:    e.SongID,
			CreatedBy: e.CreatedBy,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// ===== Auth =====

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := s.accountUC.Register(r.Context(), req.Username, req.FullName, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Account accountView `json:"account"`
		Message string      `json:"message"`
	}{toAccountView(acc), "Registered, waiting for teacher approval"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := s.accountUC.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := s.auth.Mint(w, acc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Account accountView `json:"account"`
		Token   string      `json:"token"`
	}{toAccountView(acc), token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	acc, err := s.accountUC.FindByID(r.Context(), claims.UserID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(acc))
}

// ===== Songs =====

func (s *Server) handleSubmitSong(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title"`
		Lyrics       string `json:"lyrics"`
		Style        string `json:"style"`
		Model        string `json:"model"`
		VocalGender  string `json:"vocal_gender"`
		Instrumental bool   `json:"instrumental"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFrom(r.Context())
	song, err := s.songUC.Submit(r.Context(), claims.UserID(), usecase.SubmitSongInput{
		Title:        req.Title,
		Lyrics:       req.Lyrics,
		Style:        req.Style,
		Model:        req.Model,
		VocalGender:  req.VocalGender,
		Instrumental: req.Instrumental,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSongView(song))
}

func (s *Server) handleSubmitCover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UploadURL           string  `json:"upload_url"`
		Title               string  `json:"title"`
		Prompt              string  `json:"prompt"`
		Style               string  `json:"style"`
		Model               string  `json:"model"`
		VocalGender         string  `json:"vocal_gender"`
		Instrumental        bool    `json:"instrumental"`
		NegativeTags        string  `json:"negative_tags"`
		StyleWeight         float64 `json:"style_weight"`
		WeirdnessConstraint float64 `json:"weirdness_constraint"`
		AudioWeight         float64 `json:"audio_weight"`
		SourceYouTubeURL    string  `json:"source_youtube_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFrom(r.Context())
	song, err := s.songUC.SubmitCover(r.Context(), claims.UserID(), usecase.SubmitCoverInput{
		SourceUploadURL:     req.UploadURL,
		Title:               req.Title,
		Prompt:              req.Prompt,
		Style:               req.Style,
		Model:               req.Model,
		VocalGender:         req.VocalGender,
		Instrumental:        req.Instrumental,
		NegativeTags:        req.NegativeTags,
		StyleWeight:         req.StyleWeight,
		WeirdnessConstraint: req.WeirdnessConstraint,
		AudioWeight:         req.AudioWeight,
		SourceYouTubeURL:    req.SourceYouTubeURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSongView(song))
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	offset, limit := pageParams(r)

	songs, err := s.songUC.ListByUser(r.Context(), claims.UserID(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]songView, 0, len(songs))
	for _, song := range songs {
		views = append(views, toSongView(song))
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []songView `json:"data"`
		Limit  int        `json:"limit"`
		Offset int        `json:"offset"`
	}{views, limit, offset})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	song, err := s.songUC.Get(r.Context(), chi.URLParam(r, "id"), claims.UserID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSongView(song))
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.songUC.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePollTask(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	taskID := chi.URLParam(r, "taskID")

	// A browser refreshing every second should not become one provider
	// call per refresh. The cache key is scoped to the session subject so
	// a hit never bypasses the ownership check a miss would run.
	cacheKey := taskID + ":" + claims.UserID()
	if s.pollCache != nil {
		if payload, ok := s.pollCache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(payload))
			return
		}
	}

	res, err := s.songUC.Poll(r.Context(), taskID, claims.UserID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := struct {
		Status    string `json:"status"`
		AudioURL  string `json:"audio_url,omitempty"`
		AudioURL2 string `json:"audio_url_2,omitempty"`
		Duration  int    `json:"duration,omitempty"`
		Error     string `json:"error,omitempty"`
	}{string(res.State), res.AudioURL, res.AudioURL2, res.Duration, res.ErrorText}
	if s.pollCache != nil && res.State == model.SongStatusGenerating {
		if b, err := json.Marshal(view); err == nil {
			s.pollCache.Set(r.Context(), cacheKey, string(b))
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// handleProviderCallback handles the push notification the generation
// provider sends when a task changes state. The body is not trusted
// beyond the task id; the state itself comes from a fresh status fetch.
func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data.TaskID == "" {
		writeError(w, http.StatusBadRequest, "Invalid callback payload")
		return
	}
	if _, err := s.songUC.Poll(r.Context(), req.Data.TaskID, ""); err != nil {
		s.log.Warn().Err(err).Str("task_id", req.Data.TaskID).Msg("callback poll failed")
	}
	// Always acknowledge so the provider does not retry forever.
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// ===== Media =====

func (s *Server) handleYouTubeCover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YouTubeURL string `json:"youtube_url"`
		PitchShift *int   `json:"pitch_shift"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pitch := 3 // default shift matches classroom vocal range
	if req.PitchShift != nil {
		pitch = *req.PitchShift
	}

	claims := claimsFrom(r.Context())
	src, err := s.mediaUC.PrepareYouTubeCover(r.Context(), claims.UserID(), req.YouTubeURL, pitch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AudioURL string `json:"audio_url"`
		Title    string `json:"title"`
		Duration int    `json:"duration"`
	}{src.AudioURL, src.Title, src.DurationSeconds})
}

const maxUploadBytes = 50 << 20

func (s *Server) handleProcessUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or malformed form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	speed, _ := strconv.ParseFloat(r.FormValue("speed"), 64)
	if speed == 0 {
		speed = 1.0
	}
	pitch, _ := strconv.Atoi(r.FormValue("pitch"))

	claims := claimsFrom(r.Context())
	url, err := s.mediaUC.ProcessUpload(r.Context(), claims.UserID(), header.Filename, file, speed, pitch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio_url": url})
}

// ===== Lyrics =====

func (s *Server) handleGenerateLyrics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft, err := s.lyricsUC.GenerateLyrics(r.Context(), req.Theme)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text, err := s.lyricsUC.Transcribe(r.Context(), req.AudioURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lyrics": text})
}

// ===== Credits =====

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	offset, limit := pageParams(r)

	balance, err := s.creditUC.Balance(r.Context(), claims.UserID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	history, err := s.creditUC.History(r.Context(), claims.UserID(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Balance int          `json:"balance"`
		History []ledgerView `json:"history"`
	}{balance, toLedgerViews(history)})
}

// ===== Teacher administration =====

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	accounts, err := s.accountUC.List(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []accountView `json:"data"`
		Limit  int           `json:"limit"`
		Offset int           `json:"offset"`
	}{views, limit, offset})
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username       string `json:"username"`
		FullName       string `json:"full_name"`
		InitialCredits int    `json:"initial_credits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFrom(r.Context())
	created, err := s.accountUC.CreateStudent(r.Context(), claims.UserID(), req.Username, req.FullName, req.InitialCredits)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// The initial password is shown exactly once, at creation time.
	writeJSON(w, http.StatusCreated, struct {
		Account         accountView `json:"account"`
		InitialPassword string      `json:"initial_password"`
	}{toAccountView(created.Account), created.Password})
}

func (s *Server) handleApproveStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approved *bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	claims := claimsFrom(r.Context())
	if err := s.accountUC.SetApproved(r.Context(), claims.UserID(), chi.URLParam(r, "id"), approved); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFrom(r.Context())
	balance, err := s.creditUC.AddCredits(r.Context(), claims.UserID(), chi.URLParam(r, "id"), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}

func (s *Server) handleStudentHistory(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	history, err := s.creditUC.History(r.Context(), chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []ledgerView `json:"data"`
	}{toLedgerViews(history)})
}

// ===== Settings =====

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsUC.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	type settingView struct {
		Key       string    `json:"key"`
		Value     string    `json:"value"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	views := make([]settingView, 0, len(settings))
	for _, st := range settings {
		views = append(views, settingView{Key: st.Key, Value: st.Value, UpdatedAt: st.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, struct {
		Data []settingView `json:"data"`
	}{views})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFrom(r.Context())
	if err := s.settingsUC.Set(r.Context(), claims.UserID(), chi.URLParam(r, "key"), req.Value); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
