package adapter

import "context"

// Provider task statuses as reported by the music-generation API.
// Anything not listed here is treated as still in progress.
const (
	TaskStatusPending             = "PENDING"
	TaskStatusFirstSuccess        = "FIRST_SUCCESS"
	TaskStatusSuccess             = "SUCCESS"
	TaskStatusCreateTaskFailed    = "CREATE_TASK_FAILED"
	TaskStatusGenerateAudioFailed = "GENERATE_AUDIO_FAILED"
	TaskStatusCallbackException   = "CALLBACK_EXCEPTION"
	TaskStatusSensitiveWordError  = "SENSITIVE_WORD_ERROR"
)

// IsTaskFailure reports whether a provider status is one of its defined
// terminal failure codes.
func IsTaskFailure(status string) bool {
	switch status {
	case TaskStatusCreateTaskFailed, TaskStatusGenerateAudioFailed,
		TaskStatusCallbackException, TaskStatusSensitiveWordError:
		return true
	}
	return false
}

// SubmitParams carries the fields for an original-song generation task.
type SubmitParams struct {
	Title        string
	Lyrics       string // sent as the provider "prompt"
	Style        string
	Model        string // e.g. "V5"
	VocalGender  string // "f" | "m"
	Instrumental bool
	CallbackURL  string
}

// CoverParams carries the fields for a cover task rendered from an
// uploaded source recording.
type CoverParams struct {
	UploadURL           string
	Title               string
	Prompt              string
	Style               string
	Model               string
	VocalGender         string
	Instrumental        bool
	NegativeTags        string
	StyleWeight         float64
	WeirdnessConstraint float64
	AudioWeight         float64
	CallbackURL         string
}

// Track is one rendition the provider produced for a task.
type Track struct {
	Title           string
	AudioURL        string
	DurationSeconds float64 // provider reports fractional seconds
}

// TaskInfo is the provider-side view of a task.
type TaskInfo struct {
	TaskID       string
	Status       string
	Tracks       []Track
	ErrorMessage string
}

// MusicGenerationAdapter wraps the external music-generation HTTP API.
// A non-success application-level response code must surface as an error
// even when the transport-level HTTP status is 200.
type MusicGenerationAdapter interface {
	SubmitSong(ctx context.Context, p SubmitParams) (taskID string, err error)
	SubmitCover(ctx context.Context, p CoverParams) (taskID string, err error)
	FetchTask(ctx context.Context, taskID string) (*TaskInfo, error)
}
