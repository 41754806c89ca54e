package lyrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.LyricsAdapter = (*AnthropicAdapter)(nil)

// AnthropicAdapter writes song drafts with the Messages API. The API has
// no JSON response mode, so parseDraft does the brace extraction.
type AnthropicAdapter struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewAnthropicAdapter(apiKey, model string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key empty")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicAdapter{
		apiKey: apiKey,
		base:   "https://api.anthropic.com/v1",
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) GenerateLyrics(ctx context.Context, prompt string) (*adapter.LyricsDraft, error) {
	reqBody := struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}{
		Model:     a.model,
		MaxTokens: 1024,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{{Role: "user", Content: prompt}},
	}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Content) == 0 {
		return nil, errors.New("anthropic: empty content")
	}
	return parseDraft(payload.Content[0].Text)
}
