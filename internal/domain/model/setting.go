package model

import "time"

// Setting keys stored in the settings table. A stored value always wins
// over the process default from the config file.
const (
	SettingCreditsPerSong = "credits_per_song"
	SettingSunoAPIKey     = "suno_api_key"
	SettingAIProvider     = "ai_provider"
	SettingAIAPIKey       = "ai_api_key"
	SettingAIModel        = "ai_model"
	SettingGeminiAPIKey   = "gemini_api_key"
)

type Setting struct {
	Key       string
	Value     string
	UpdatedBy string
	UpdatedAt time.Time
}
