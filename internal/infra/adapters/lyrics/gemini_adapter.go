package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.LyricsAdapter = (*GeminiAdapter)(nil)
var _ adapter.TranscriptionAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter writes song drafts and transcribes recordings using the
// official SDK. Transcription works by downloading the audio and sending
// it inline next to the instruction.
type GeminiAdapter struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:     c,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) GenerateLyrics(ctx context.Context, prompt string) (*adapter.LyricsDraft, error) {
	text, err := g.generate(ctx, []*genai.Part{{Text: prompt}})
	if err != nil {
		return nil, err
	}
	return parseDraft(text)
}

const transcribePrompt = `You are an expert at transcribing song lyrics. Listen to this song and write out the lyrics as accurately as possible.

Rules:
1. Transcribe every sung line you hear.
2. Add structure tags such as [Intro], [Verse 1], [Pre-Chorus], [Chorus], [Bridge], [Outro].
3. Keep the language of the original lyrics.
4. Mark sections without vocals as [Instrumental].
5. Reply with the lyrics only, no commentary.`

func (g *GeminiAdapter) Transcribe(ctx context.Context, audioURL string) (string, error) {
	data, mime, err := g.download(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	text, err := g.generate(ctx, []*genai.Part{
		{Text: transcribePrompt},
		{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
	})
	if err != nil {
		return "", err
	}
	lyrics := strings.TrimSpace(text)
	if lyrics == "" {
		return "", errors.New("gemini: empty transcription")
	}
	return lyrics, nil
}

func (g *GeminiAdapter) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiAdapter) download(ctx context.Context, audioURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("audio http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, mimeFromURL(audioURL), nil
}

func mimeFromURL(u string) string {
	switch {
	case strings.Contains(u, ".wav"):
		return "audio/wav"
	case strings.Contains(u, ".m4a"), strings.Contains(u, ".mp4"):
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
