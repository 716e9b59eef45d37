package docscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// DocAIProvider runs documents through a GCP Document AI processor.
// gs:// URLs are processed in place; anything else is fetched and sent as
// raw bytes.
type DocAIProvider struct {
	log        *logger.Logger
	client     *documentai.DocumentProcessorClient
	httpClient *http.Client
	processor  string
}

func NewDocAIProvider(log *logger.Logger) (*DocAIProvider, error) {
	project := envutil.String("DOCAI_PROJECT_ID", "")
	processorID := envutil.String("DOCAI_PROCESSOR_ID", "")
	if project == "" || processorID == "" {
		return nil, fmt.Errorf("missing DOCAI_PROJECT_ID or DOCAI_PROCESSOR_ID")
	}
	location := envutil.String("DOCAI_LOCATION", "us")
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	slog := log.With("service", "docscan.DocAI")
	slog.Info("Document AI initialized", "endpoint", endpoint)

	return &DocAIProvider{
		log:        slog,
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		processor:  fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID),
	}, nil
}

func (p *DocAIProvider) Close() error {
	return p.client.Close()
}

func (p *DocAIProvider) Analyze(ctx context.Context, documentURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name:      p.processor,
		FieldMask: &fieldmaskpb.FieldMask{Paths: []string{"text", "pages"}},
	}

	if strings.HasPrefix(documentURL, "gs://") {
		req.Source = &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{
				GcsUri:   documentURL,
				MimeType: "application/pdf",
			},
		}
	} else {
		data, mime, err := p.fetch(ctx, documentURL)
		if err != nil {
			return nil, err
		}
		req.Source = &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mime,
			},
		}
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return &Result{Provider: "gcp_documentai", Model: p.processor}, nil
	}
	return p.buildResult(resp.Document), nil
}

func (p *DocAIProvider) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch document %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch document %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/pdf"
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return data, mime, nil
}

// buildResult renders each Document AI page as markdown so downstream
// region classification sees the same shape as the Mistral provider.
func (p *DocAIProvider) buildResult(doc *documentaipb.Document) *Result {
	result := &Result{Provider: "gcp_documentai", Model: p.processor}

	for i, page := range doc.Pages {
		if page == nil {
			continue
		}
		var b strings.Builder
		for _, para := range page.Paragraphs {
			if para == nil || para.Layout == nil || para.Layout.TextAnchor == nil {
				continue
			}
			text := strings.TrimSpace(anchorText(doc.Text, para.Layout.TextAnchor))
			if text == "" {
				continue
			}
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		md := strings.TrimSpace(b.String())
		if md == "" && len(doc.Pages) == 1 {
			md = strings.TrimSpace(doc.Text)
		}
		result.Pages = append(result.Pages, Page{Index: i, Markdown: md})
	}

	if len(result.Pages) == 0 && strings.TrimSpace(doc.Text) != "" {
		result.Pages = append(result.Pages, Page{Index: 0, Markdown: strings.TrimSpace(doc.Text)})
	}

	if b, err := json.Marshal(doc); err == nil {
		raw := map[string]any{}
		if json.Unmarshal(b, &raw) == nil {
			pages := make([]any, 0, len(result.Pages))
			for _, page := range result.Pages {
				pages = append(pages, map[string]any{
					"index":    page.Index,
					"markdown": page.Markdown,
				})
			}
			raw["pages"] = pages
			result.Raw = raw
		}
	}
	return result
}

func anchorText(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}
