package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
}

// Summarizer turns extracted disclosure content into a structured
// payload. Transcript text goes into the prompt directly; recordings
// are downloaded and inlined so the model hears the call itself.
type Summarizer struct {
	client   *Client
	fetcher  ports.AttachmentFetcher
	executor *resilience.Executor
	policy   resilience.Policy
}

func NewSummarizer(client *Client, fetcher ports.AttachmentFetcher, executor *resilience.Executor, policy resilience.Policy) *Summarizer {
	return &Summarizer{
		client:   client,
		fetcher:  fetcher,
		executor: executor,
		policy:   policy,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, req ports.SummarizeRequest) (*domain.Payload, error) {
	parts, cleanup, err := s.buildParts(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if parts == nil {
		// Pointer-only content with nothing the model can consume: the
		// payload is the pointer itself.
		return &domain.Payload{
			Kind:      domain.KindWebLink,
			Company:   req.Company,
			Links:     req.Content.Links,
			SourceURL: req.SourceURL,
		}, nil
	}

	var raw string
	err = s.executor.Execute(ctx, "gemini.generate_summary", s.policy, func(ctx context.Context) error {
		text, err := s.client.generateContent(ctx, parts)
		if err != nil {
			return err
		}
		raw = text
		return nil
	}, classifyGeminiError)
	if err != nil {
		return nil, err
	}

	var payload domain.Payload
	if err := json.Unmarshal([]byte(extractJSONObject(stripCodeFence(raw))), &payload); err != nil {
		return nil, domain.WrapError(domain.ErrSummarization, "parse summary json", err)
	}
	payload.Kind = domain.KindSummary
	payload.Company = req.Company
	payload.SourceURL = req.SourceURL
	return &payload, nil
}

// buildParts assembles the prompt and any inline media. A nil parts
// slice with nil error means the content cannot be summarized and the
// caller should fall back to a pointer payload.
func (s *Summarizer) buildParts(ctx context.Context, req ports.SummarizeRequest) ([]requestPart, func(), error) {
	cleanup := func() {}

	var prompt string
	if req.Historical {
		prompt = buildHistoricalPrompt(req.Company)
	} else {
		prompt = buildSummaryPrompt(req.Company, req.Prior)
	}

	switch req.Content.Kind {
	case domain.ContentText:
		return []requestPart{
			{Text: prompt},
			{Text: "Transcript:\n" + req.Content.Text},
		}, cleanup, nil

	case domain.ContentLink:
		media := req.Content.MediaLinks()
		if len(media) == 0 {
			return nil, cleanup, nil
		}
		local, err := s.fetcher.Fetch(ctx, media[0].URL, req.Company)
		if err != nil {
			return nil, cleanup, fmt.Errorf("fetch media for summary: %w", err)
		}
		cleanup = func() { s.fetcher.Release(local) }

		data, err := os.ReadFile(local)
		if err != nil {
			cleanup()
			return nil, func() {}, domain.WrapError(domain.ErrSummarization, "read media file", err)
		}
		return []requestPart{
			{Text: prompt},
			{InlineData: &inlineData{
				MimeType: mimeTypeFor(media[0].URL),
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		}, cleanup, nil

	default:
		return nil, cleanup, domain.WrapError(domain.ErrSummarization, "build summary request",
			fmt.Errorf("unsupported content kind %q", req.Content.Kind))
	}
}

func mimeTypeFor(rawURL string) string {
	switch strings.ToLower(path.Ext(strings.Split(rawURL, "?")[0])) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/pdf"
	}
}

// stripCodeFence removes a ```json ... ``` wrapper the model sometimes
// adds despite instructions.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
