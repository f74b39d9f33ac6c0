package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultInferTimeout  = 60 * time.Second
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Breaker *gobreaker.CircuitBreaker
}

// GeminiClient calls the generateContent REST endpoint.
type GeminiClient struct {
	http    *resty.Client
	model   string
	key     string
	breaker *gobreaker.CircuitBreaker
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInferTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &GeminiClient{http: c, model: cfg.Model, key: cfg.APIKey, breaker: cfg.Breaker}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, img Image) (string, error) {
	if g.breaker == nil {
		return g.generate(ctx, prompt, img)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.generate(ctx, prompt, img)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, img Image) (string, error) {
	body := generateRequest{Contents: []content{{Parts: []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: img.MIME, Data: img.Data}},
	}}}}

	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.key).
		SetBody(body).
		Post("/v1beta/models/" + g.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	var out generateResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)

	if resp.IsError() {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return "", fmt.Errorf("gemini status %d", resp.StatusCode())
	}
	if decodeErr != nil {
		return "", fmt.Errorf("gemini decode: %w", decodeErr)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text (finish=%s)", out.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}
