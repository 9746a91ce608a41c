package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

type fakeFetcher struct {
	dir      string
	fetched  []string
	released []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, _ string) (string, error) {
	f.fetched = append(f.fetched, url)
	p := filepath.Join(f.dir, "media.mp3")
	if err := os.WriteFile(p, []byte("audio-bytes"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func (f *fakeFetcher) Release(path string) {
	f.released = append(f.released, path)
}

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestSummarizer(t *testing.T, serverURL string, attempts int) (*Summarizer, *fakeFetcher) {
	t.Helper()
	fetcher := &fakeFetcher{dir: t.TempDir()}
	client := New(serverURL, "test-key", "gemini-flash-latest")
	return NewSummarizer(client, fetcher, resilience.NewExecutor(resilience.BreakerConfig{}), fastPolicy(attempts)), fetcher
}

func modelReply(text string) string {
	reply := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(reply)
	return string(raw)
}

func TestSummarizeTranscriptBuildsStructuredPayload(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(modelReply(`{"executive_summary":"Strong quarter.","key_takeaway":"Margins up.","sentiment":"Positive"}`)))
	}))
	defer server.Close()

	summarizer, _ := newTestSummarizer(t, server.URL, 1)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content:   domain.Content{Kind: domain.ContentText, Text: "transcript body"},
		Company:   "Acme Industries",
		SourceURL: "https://example.org/a1.pdf",
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if payload.Kind != domain.KindSummary {
		t.Fatalf("expected summary kind, got %q", payload.Kind)
	}
	if payload.Company != "Acme Industries" || payload.SourceURL != "https://example.org/a1.pdf" {
		t.Fatalf("identity fields not stamped: %+v", payload)
	}
	if payload.ExecutiveSummary != "Strong quarter." {
		t.Fatalf("unexpected summary: %+v", payload)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 2 || !strings.Contains(parts[0].Text, "Acme Industries") || !strings.Contains(parts[1].Text, "transcript body") {
		t.Fatalf("unexpected prompt parts: %+v", parts)
	}
}

func TestSummarizeStripsCodeFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(modelReply("```json\n{\"key_takeaway\":\"fenced\"}\n```")))
	}))
	defer server.Close()

	summarizer, _ := newTestSummarizer(t, server.URL, 1)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content: domain.Content{Kind: domain.ContentText, Text: "t"},
		Company: "Acme",
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if payload.KeyTakeaway != "fenced" {
		t.Fatalf("fence stripping failed: %+v", payload)
	}
}

func TestSummarizeIncludesPriorComparisonInstruction(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(modelReply(`{"comparison_with_previous_call":"Guidance raised."}`)))
	}))
	defer server.Close()

	summarizer, _ := newTestSummarizer(t, server.URL, 1)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content: domain.Content{Kind: domain.ContentText, Text: "t"},
		Company: "Acme",
		Prior:   &domain.Payload{Kind: domain.KindSummary, ExecutiveSummary: "Weak prior quarter."},
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	prompt := captured.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "comparison_with_previous_call") || !strings.Contains(prompt, "Weak prior quarter.") {
		t.Fatalf("prior summary missing from prompt: %s", prompt)
	}
	if payload.ComparisonWithPrev != "Guidance raised." {
		t.Fatalf("comparison field not decoded: %+v", payload)
	}
}

func TestSummarizeWebOnlyLinksSkipsModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no model call expected for web-only content")
	}))
	defer server.Close()

	summarizer, fetcher := newTestSummarizer(t, server.URL, 1)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content: domain.Content{Kind: domain.ContentLink, Links: []domain.Link{
			{URL: "https://example.com/ir", Type: domain.LinkWeb},
		}},
		Company:   "Acme",
		SourceURL: "https://example.org/a1.pdf",
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if payload.Kind != domain.KindWebLink || len(payload.Links) != 1 {
		t.Fatalf("expected web link payload, got %+v", payload)
	}
	if len(fetcher.fetched) != 0 {
		t.Fatalf("no media fetch expected, got %v", fetcher.fetched)
	}
}

func TestSummarizeInlinesMediaAndReleasesScratch(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(modelReply(`{"key_takeaway":"from audio"}`)))
	}))
	defer server.Close()

	summarizer, fetcher := newTestSummarizer(t, server.URL, 1)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content: domain.Content{Kind: domain.ContentLink, Links: []domain.Link{
			{URL: "https://cdn.example.com/q4.mp3", Type: domain.LinkMedia},
		}},
		Company: "Acme",
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if payload.KeyTakeaway != "from audio" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("expected inline media part, got %+v", parts)
	}
	if parts[1].InlineData.MimeType != "audio/mpeg" {
		t.Fatalf("unexpected mime type %q", parts[1].InlineData.MimeType)
	}
	if len(fetcher.released) != 1 {
		t.Fatalf("scratch media must be released, got %v", fetcher.released)
	}
}

func TestSummarizeRetriesOverloadedModel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(modelReply(`{"key_takeaway":"eventually"}`)))
	}))
	defer server.Close()

	summarizer, _ := newTestSummarizer(t, server.URL, 3)
	payload, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content: domain.Content{Kind: domain.ContentText, Text: "t"},
		Company: "Acme",
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if calls != 3 || payload.KeyTakeaway != "eventually" {
		t.Fatalf("expected success on third attempt, calls=%d payload=%+v", calls, payload)
	}
}

func TestHistoricalPromptUsesReducedShape(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(modelReply(`{"executive_summary":"prior call"}`)))
	}))
	defer server.Close()

	summarizer, _ := newTestSummarizer(t, server.URL, 1)
	_, err := summarizer.Summarize(context.Background(), ports.SummarizeRequest{
		Content:    domain.Content{Kind: domain.ContentText, Text: "t"},
		Company:    "Acme",
		Historical: true,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	prompt := captured.Contents[0].Parts[0].Text
	for _, absent := range []string{"sentiment", "key_qa_highlights", "key_takeaway"} {
		if strings.Contains(prompt, absent) {
			t.Fatalf("historical prompt must use the reduced shape, found %q: %s", absent, prompt)
		}
	}
	for _, present := range []string{"executive_summary", "key_financials", "strategic_outlook", "risks_and_concerns"} {
		if !strings.Contains(prompt, present) {
			t.Fatalf("historical prompt missing %q: %s", present, prompt)
		}
	}
	if !strings.Contains(prompt, "past earnings call") {
		t.Fatalf("unexpected historical prompt: %s", prompt)
	}
}
