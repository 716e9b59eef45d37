package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// ImageInput is the normalized multimodal image input used by Client.
type ImageInput struct {
	// Can be https://... or data:image/...;base64,...
	ImageURL string
	Detail   string // "low" | "high"
}

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
	Cached     int `json:"cached"`
}

// Client is the vision/LLM agent used by the AI task handlers. It accepts a
// system/user prompt pair, an optional image reference, and an optional
// structured-output schema, and returns content plus token usage.
type Client interface {
	// Structured output (json_schema), text-only.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, Usage, error)

	// Structured output with image references.
	GenerateJSONWithImages(ctx context.Context, system, user string, images []ImageInput, schemaName string, schema map[string]any) (map[string]any, Usage, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.String("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.String("OPENAI_MODEL", "gpt-4o")
	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)
	maxRetries := envutil.Int("OPENAI_MAX_RETRIES", 4)

	return &client{
		log:        log.With("service", "openai.Client"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

// ---- chat completions wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		TotalTokens         int `json:"total_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, Usage, error) {
	return c.completeJSON(ctx, system, userContent(user, nil), schemaName, schema)
}

func (c *client) GenerateJSONWithImages(ctx context.Context, system, user string, images []ImageInput, schemaName string, schema map[string]any) (map[string]any, Usage, error) {
	return c.completeJSON(ctx, system, userContent(user, images), schemaName, schema)
}

func (c *client) completeJSON(ctx context.Context, system string, user any, schemaName string, schema map[string]any) (map[string]any, Usage, error) {
	var responseFormat any
	if schema != nil {
		responseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		}
	} else {
		responseFormat = map[string]any{"type": "json_object"}
	}

	raw, usage, err := c.complete(ctx, system, user, responseFormat)
	if err != nil {
		return nil, usage, err
	}

	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// Some models wrap JSON in prose; salvage the first object.
		if start := strings.Index(raw, "{"); start >= 0 {
			if err2 := json.Unmarshal([]byte(raw[start:]), &out); err2 == nil {
				return out, usage, nil
			}
		}
		return map[string]any{"raw": raw}, usage, nil
	}
	return out, usage, nil
}

func (c *client) complete(ctx context.Context, system string, user any, responseFormat any) (string, Usage, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", Usage{}, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", Usage{}, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(data), 300))
			c.log.Warn("retriable openai failure", "status", resp.StatusCode, "attempt", attempt)
			continue
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return "", Usage{}, fmt.Errorf("decode openai response: %w", err)
		}
		if parsed.Error != nil {
			return "", Usage{}, fmt.Errorf("openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return "", Usage{}, fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(data), 300))
		}
		if len(parsed.Choices) == 0 {
			return "", Usage{}, fmt.Errorf("openai returned no choices")
		}

		usage := Usage{
			Prompt:     parsed.Usage.PromptTokens,
			Completion: parsed.Usage.CompletionTokens,
			Total:      parsed.Usage.TotalTokens,
			Cached:     parsed.Usage.PromptTokensDetails.CachedTokens,
		}
		return parsed.Choices[0].Message.Content, usage, nil
	}
	return "", Usage{}, fmt.Errorf("openai request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func userContent(text string, images []ImageInput) any {
	if len(images) == 0 {
		return text
	}
	parts := []contentPart{{Type: "text", Text: text}}
	for _, img := range images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURLPart{URL: img.ImageURL, Detail: img.Detail},
		})
	}
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
