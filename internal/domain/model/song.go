package model

import "time"

type SongStatus string

const (
	SongStatusPending    SongStatus = "pending"    // row created, provider submission not yet confirmed
	SongStatusGenerating SongStatus = "generating" // provider accepted the task
	SongStatusCompleted  SongStatus = "completed"  // at least one rendition ready
	SongStatusFailed     SongStatus = "failed"     // terminal, debit reversed
)

type SongKind string

const (
	SongKindOriginal SongKind = "original"
	SongKindCover    SongKind = "cover"
)

// Song is one generation request tracked from submission to a terminal
// outcome. The provider may return up to two renditions per task.
type Song struct {
	ID               string
	UserID           string
	Title            string
	Lyrics           string
	Style            string
	Kind             SongKind
	TaskID           string // provider task id, empty until submission succeeds
	Status           SongStatus
	AudioURL         string
	AudioURL2        string
	DurationSeconds  int
	CreditsUsed      int
	ErrorMessage     string
	SourceYouTubeURL string
	SourceUploadURL  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *Song) IsTerminal() bool {
	return s.Status == SongStatusCompleted || s.Status == SongStatusFailed
}
