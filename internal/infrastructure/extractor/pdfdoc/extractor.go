package pdfdoc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// Documents longer than this carry the transcript inline; short ones
// are cover letters pointing at an externally hosted recording or PDF.
const fullTextPageThreshold = 3

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	// Joins URL fragments the PDF text layer broke across lines.
	urlLineBreak = regexp.MustCompile(`(https?://\S*)\n(\S+)`)
	mediaPattern = regexp.MustCompile(`(?i)\.(mp3|mp4|wav|m4a|pdf)\b`)
)

// Extractor classifies a downloaded attachment as transcript text or
// pointer links.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path string) (domain.Content, error) {
	if err := ctx.Err(); err != nil {
		return domain.Content{}, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrContentUnusable, "open pdf", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	text := collectText(reader, pages)

	if pages > fullTextPageThreshold {
		if strings.TrimSpace(text) == "" {
			return domain.Content{}, domain.WrapError(domain.ErrContentUnusable, "extract transcript",
				fmt.Errorf("no extractable text across %d pages", pages))
		}
		return domain.Content{Kind: domain.ContentText, Text: text}, nil
	}

	links := harvestLinks(text)
	if len(links) == 0 {
		return domain.Content{}, domain.WrapError(domain.ErrContentUnusable, "classify attachment",
			errors.New("short document with no links"))
	}
	return domain.Content{Kind: domain.ContentLink, Links: links}, nil
}

func collectText(reader *pdf.Reader, pages int) string {
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page must not discard the rest.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// harvestLinks finds every URL in the text, restitching ones the PDF
// layout split across lines, and classifies each as media or web.
func harvestLinks(text string) []domain.Link {
	for {
		joined := urlLineBreak.ReplaceAllString(text, "$1$2")
		if joined == text {
			break
		}
		text = joined
	}

	seen := make(map[string]bool)
	var links []domain.Link
	for _, raw := range urlPattern.FindAllString(text, -1) {
		url := strings.TrimRight(raw, ".,;:)]}>\"'")
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		linkType := domain.LinkWeb
		if mediaPattern.MatchString(url) {
			linkType = domain.LinkMedia
		}
		links = append(links, domain.Link{URL: url, Type: linkType})
	}
	return links
}
