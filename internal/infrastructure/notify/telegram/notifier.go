package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// Notifier delivers processed disclosures to a Telegram chat via the
// bot API. Formatting lives here; ordering and pacing are the
// sequencer's job.
type Notifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		baseURL:  "https://api.telegram.org",
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *Notifier) Send(ctx context.Context, notification domain.Notification) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatMessage(notification))
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func formatMessage(n domain.Notification) string {
	switch n.Kind {
	case domain.NotifySummary:
		return formatSummary(n.Payload, n.Context)
	case domain.NotifyWebLink, domain.NotifyWebLinkWithContext:
		return formatWebLink(n.Payload, n.Context)
	default:
		return formatError(n.Payload)
	}
}

func formatSummary(p domain.Payload, cmp *domain.ComparisonContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b> — Earnings Call\n\n", esc(p.Company))
	if p.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", esc(p.ExecutiveSummary))
	}
	if p.KeyTakeaway != "" {
		fmt.Fprintf(&b, "💡 <b>Key takeaway:</b> %s\n", esc(p.KeyTakeaway))
	}
	if p.Sentiment != "" {
		fmt.Fprintf(&b, "🎯 <b>Sentiment:</b> %s", esc(p.Sentiment))
		if p.ManagementTone != "" {
			fmt.Fprintf(&b, " (%s)", esc(p.ManagementTone))
		}
		b.WriteString("\n")
	}
	writeSection(&b, "📈 Key financials", p.KeyFinancials)
	writeSection(&b, "🧭 Outlook", p.StrategicOutlook)
	writeSection(&b, "⚠️ Risks", p.Risks)
	writeSection(&b, "❓ Q&A highlights", p.QAHighlights)
	if p.ComparisonWithPrev != "" {
		fmt.Fprintf(&b, "\n🔁 <b>vs previous call:</b> %s\n", esc(p.ComparisonWithPrev))
	}
	writePriorLinks(&b, cmp)
	writeSource(&b, p.SourceURL)
	return strings.TrimSpace(b.String())
}

func formatWebLink(p domain.Payload, cmp *domain.ComparisonContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔗 <b>%s</b> — Earnings Call\n\n", esc(p.Company))
	b.WriteString("The filing points at an externally hosted recording or page:\n")
	for _, link := range p.Links {
		fmt.Fprintf(&b, "• %s\n", esc(link.URL))
	}
	if cmp != nil && cmp.PriorSummary != nil && cmp.PriorSummary.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "\n🕓 <b>Previous call:</b> %s\n", esc(cmp.PriorSummary.ExecutiveSummary))
	}
	writePriorLinks(&b, cmp)
	writeSource(&b, p.SourceURL)
	return strings.TrimSpace(b.String())
}

// writePriorLinks appends the prior call's source material so readers
// can jump straight to the last filing or recording.
func writePriorLinks(b *strings.Builder, cmp *domain.ComparisonContext) {
	if cmp == nil {
		return
	}
	if cmp.PriorMediaURL != "" {
		fmt.Fprintf(b, "\n🎧 <b>Previous recording:</b> %s\n", esc(cmp.PriorMediaURL))
	}
	if cmp.PriorPDFURL != "" {
		fmt.Fprintf(b, "\n🗂 <b>Previous filing:</b> %s\n", esc(cmp.PriorPDFURL))
	}
}

func formatError(p domain.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ <b>%s</b> — processing failed\n\n", esc(p.Company))
	fmt.Fprintf(&b, "<b>%s:</b> %s\n", esc(p.ErrorKind), esc(p.Message))
	writeSource(&b, p.SourceURL)
	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n<b>%s</b>\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "• %s\n", esc(item))
	}
}

func writeSource(b *strings.Builder, sourceURL string) {
	if sourceURL != "" {
		fmt.Fprintf(b, "\n📄 %s", esc(sourceURL))
	}
}

func esc(s string) string {
	return html.EscapeString(s)
}
