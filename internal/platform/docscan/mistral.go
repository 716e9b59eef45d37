package docscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// MistralProvider calls the Mistral OCR API directly: POST /v1/ocr with a
// document URL, returning per-page markdown with layout awareness.
type MistralProvider struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewMistralProvider(log *logger.Logger) (*MistralProvider, error) {
	apiKey := envutil.String("MISTRAL_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing MISTRAL_API_KEY")
	}
	return &MistralProvider{
		log:        log.With("service", "docscan.Mistral"),
		baseURL:    envutil.String("MISTRAL_BASE_URL", "https://api.mistral.ai"),
		apiKey:     apiKey,
		model:      envutil.String("MISTRAL_OCR_MODEL", "mistral-ocr-latest"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type mistralOCRRequest struct {
	Model              string          `json:"model"`
	Document           mistralDocument `json:"document"`
	IncludeImageBase64 bool            `json:"include_image_base64"`
}

type mistralDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

func (p *MistralProvider) Analyze(ctx context.Context, documentURL string) (*Result, error) {
	body, err := json.Marshal(mistralOCRRequest{
		Model:    p.model,
		Document: mistralDocument{Type: "document_url", DocumentURL: documentURL},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mistral ocr request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mistral ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mistral ocr status %d: %s", resp.StatusCode, truncateBody(data))
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mistral ocr response: %w", err)
	}

	pages, _ := PagesFromRaw(raw)
	p.log.Debug("mistral ocr complete", "pages", len(pages))

	return &Result{
		Provider: "mistral",
		Model:    p.model,
		Pages:    pages,
		Raw:      raw,
	}, nil
}

func truncateBody(data []byte) string {
	const max = 300
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
