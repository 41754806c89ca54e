package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"school-song-portal/internal/domain/ports/adapter"
	"school-song-portal/internal/infra/metrics"
)

var _ adapter.MusicGenerationAdapter = (*KieAdapter)(nil)

// KeyFunc resolves the provider API key per call, so a key stored by the
// teacher in settings takes effect without a restart.
type KeyFunc func(ctx context.Context) (string, error)

// KieAdapter implements adapter.MusicGenerationAdapter against the kie.ai
// generation API. The API wraps every response in {code, msg, data} and
// signals failure through code even when HTTP is 200.
type KieAdapter struct {
	baseURL      string
	defaultModel string
	keyFn        KeyFunc
	client       *http.Client
}

func NewKieAdapter(baseURL, defaultModel string, keyFn KeyFunc) (*KieAdapter, error) {
	if baseURL == "" {
		baseURL = "https://api.kie.ai"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "V5"
	}
	if keyFn == nil {
		return nil, errors.New("key resolver is required")
	}
	return &KieAdapter{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		keyFn:        keyFn,
		client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (k *KieAdapter) model(requested string) string {
	if requested != "" {
		return requested
	}
	return k.defaultModel
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (k *KieAdapter) SubmitSong(ctx context.Context, p adapter.SubmitParams) (string, error) {
	payload := map[string]any{
		"prompt":       p.Lyrics,
		"style":        p.Style,
		"title":        p.Title,
		"customMode":   true,
		"instrumental": p.Instrumental,
		"model":        k.model(p.Model),
		"vocalGender":  p.VocalGender,
		"callBackUrl":  p.CallbackURL,
	}
	return k.submit(ctx, "/api/v1/generate", "generate", payload)
}

func (k *KieAdapter) SubmitCover(ctx context.Context, p adapter.CoverParams) (string, error) {
	payload := map[string]any{
		"uploadUrl":   p.UploadURL,
		"customMode":  true,
		"model":       k.model(p.Model),
		"callBackUrl": p.CallbackURL,
		"prompt":      p.Prompt,
		"style":       p.Style,
		"title":       p.Title,
		"vocalGender": p.VocalGender,
	}
	if p.Instrumental {
		payload["instrumental"] = true
	}
	if p.NegativeTags != "" {
		payload["negativeTags"] = p.NegativeTags
	}
	if p.StyleWeight > 0 {
		payload["styleWeight"] = p.StyleWeight
	}
	if p.WeirdnessConstraint > 0 {
		payload["weirdnessConstraint"] = p.WeirdnessConstraint
	}
	if p.AudioWeight > 0 {
		payload["audioWeight"] = p.AudioWeight
	}
	return k.submit(ctx, "/api/v1/generate/upload-cover", "cover", payload)
}

func (k *KieAdapter) submit(ctx context.Context, path, op string, payload map[string]any) (string, error) {
	start := time.Now()
	taskID, err := k.doSubmit(ctx, path, payload)
	metrics.ObserveProviderCall(op, float64(time.Since(start).Milliseconds()), err == nil)
	return taskID, err
}

func (k *KieAdapter) doSubmit(ctx context.Context, path string, payload map[string]any) (string, error) {
	env, err := k.call(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode task id: %w", err)
	}
	if data.TaskID == "" {
		return "", errors.New("provider returned no task id")
	}
	return data.TaskID, nil
}

func (k *KieAdapter) FetchTask(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
	start := time.Now()
	info, err := k.doFetch(ctx, taskID)
	metrics.ObserveProviderCall("record-info", float64(time.Since(start).Milliseconds()), err == nil)
	return info, err
}

func (k *KieAdapter) doFetch(ctx context.Context, taskID string) (*adapter.TaskInfo, error) {
	env, err := k.call(ctx, http.MethodGet, "/api/v1/generate/record-info?taskId="+url.QueryEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		TaskID       string `json:"taskId"`
		Status       string `json:"status"`
		ErrorMessage string `json:"errorMessage"`
		Response     struct {
			SunoData []struct {
				Title    string  `json:"title"`
				AudioURL string  `json:"audioUrl"`
				Duration float64 `json:"duration"`
			} `json:"sunoData"`
		} `json:"response"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode task info: %w", err)
	}
	info := &adapter.TaskInfo{
		TaskID:       data.TaskID,
		Status:       data.Status,
		ErrorMessage: data.ErrorMessage,
	}
	for _, t := range data.Response.SunoData {
		info.Tracks = append(info.Tracks, adapter.Track{
			Title:           t.Title,
			AudioURL:        t.AudioURL,
			DurationSeconds: t.Duration,
		})
	}
	return info, nil
}

func (k *KieAdapter) call(ctx context.Context, method, path string, payload map[string]any) (*apiEnvelope, error) {
	key, err := k.keyFn(ctx)
	if err != nil {
		return nil, err
	}

	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider http %d", resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if env.Code != 200 {
		if env.Msg == "" {
			env.Msg = "provider request failed"
		}
		return nil, fmt.Errorf("provider code %d: %s", env.Code, env.Msg)
	}
	return &env, nil
}
