package lyrics

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.LyricsAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter writes song drafts with the Chat Completions API in
// JSON mode, so parseDraft almost never needs its fallbacks.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) GenerateLyrics(ctx context.Context, prompt string) (*adapter.LyricsDraft, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a creative music producer. Always respond with valid JSON only."),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.8),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices")
	}
	return parseDraft(resp.Choices[0].Message.Content)
}
