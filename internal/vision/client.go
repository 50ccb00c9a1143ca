package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
)

// =============================================================================
// Chat completion types (internal)
// =============================================================================

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content interface{} `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Provider is one OpenAI-compatible chat completions endpoint.
type Provider struct {
	Name   string
	URL    string
	APIKey string
	Model  string
}

// =============================================================================
// Client
// =============================================================================

// Client talks to vision-capable chat completion providers, trying each in
// order until one answers.
type Client struct {
	providers  []Provider
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(providers []Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		providers:  providers,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// NewFromConfig builds the adjudicator selected by VISION_PROVIDER.
func NewFromConfig(cfg *config.Config) Adjudicator {
	if cfg.VisionProvider == "stub" {
		slog.Warn("vision adjudicator running in stub mode")
		return NewStub()
	}

	var providers []Provider
	if cfg.VisionAPIKey != "" {
		providers = append(providers, Provider{Name: cfg.VisionProvider, URL: cfg.VisionAPIURL, APIKey: cfg.VisionAPIKey, Model: cfg.VisionModel})
	}
	if cfg.VisionFallbackAPIKey != "" {
		providers = append(providers, Provider{Name: "fallback", URL: cfg.VisionFallbackAPIURL, APIKey: cfg.VisionFallbackAPIKey, Model: cfg.VisionFallbackModel})
	}
	return NewClient(providers, cfg.AITimeout)
}

func (c *Client) Classify(ctx context.Context, images []media.Image) (*Classification, error) {
	if err := validateImages(images, MaxClassifyImages); err != nil {
		return nil, err
	}

	parts := []chatContentPart{{Type: "text", Text: classifyUserPrompt}}
	parts = append(parts, imageParts(images)...)

	content, err := c.complete(ctx, classifySystemPrompt, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return parseClassification(content)
}

func (c *Client) Compare(ctx context.Context, before, after []media.Image) (*Comparison, error) {
	if len(before) == 0 {
		return nil, ErrNoEvidence
	}
	if err := validateImages(before, 0); err != nil {
		return nil, err
	}
	if err := validateImages(after, MaxAfterImages); err != nil {
		return nil, err
	}

	parts := []chatContentPart{{Type: "text", Text: fmt.Sprintf("BEFORE photos (%d):", len(before))}}
	parts = append(parts, imageParts(before)...)
	parts = append(parts, chatContentPart{Type: "text", Text: fmt.Sprintf("AFTER photos (%d):", len(after))})
	parts = append(parts, imageParts(after)...)

	content, err := c.complete(ctx, compareSystemPrompt, parts)
	if err != nil {
		return nil, verificationError(err)
	}

	cmp, err := parseComparison(content)
	if err != nil {
		return nil, verificationError(err)
	}
	return cmp, nil
}

func imageParts(images []media.Image) []chatContentPart {
	parts := make([]chatContentPart, 0, len(images))
	for _, img := range images {
		parts = append(parts, chatContentPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: img.DataURI(), Detail: "auto"},
		})
	}
	return parts
}

// complete runs one bounded request against the providers in order.
func (c *Client) complete(ctx context.Context, system string, parts []chatContentPart) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no vision provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for _, p := range c.providers {
		content, err := c.completeWith(ctx, p, system, parts)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", p.Name, ctx.Err())
		}
		slog.Warn("vision provider failed", "provider", p.Name, "error", err)
	}
	return "", lastErr
}

func (c *Client) completeWith(ctx context.Context, p Provider, system string, parts []chatContentPart) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: parts},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s API error (status %d): %s", p.Name, resp.StatusCode, truncate(string(respBody), 200))
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", p.Name, err)
	}
	if len(completion.Choices) == 0 {
		return "", &ResponseFormatError{Reason: "no choices returned"}
	}

	return messageText(completion.Choices[0].Message.Content), nil
}

// messageText flattens string or content-part message bodies into text.
func messageText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var sb strings.Builder
		for _, part := range v {
			if m, ok := part.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return sb.String()
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
