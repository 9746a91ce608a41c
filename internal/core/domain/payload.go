package domain

type PayloadKind string

const (
	KindSummary PayloadKind = "summary"
	KindWebLink PayloadKind = "web_link"
	KindError   PayloadKind = "error"
)

type LinkType string

const (
	LinkMedia LinkType = "media"
	LinkWeb   LinkType = "web"
)

type Link struct {
	URL  string   `json:"url"`
	Type LinkType `json:"link_type"`
}

// Payload is the structured result of processing one disclosure. It is
// a tagged union over Kind: summary fields are set for KindSummary,
// Links for KindWebLink, ErrorKind/Message for KindError.
type Payload struct {
	Kind    PayloadKind `json:"type"`
	Company string      `json:"company_name"`

	ExecutiveSummary   string   `json:"executive_summary,omitempty"`
	KeyTakeaway        string   `json:"key_takeaway,omitempty"`
	Sentiment          string   `json:"sentiment,omitempty"`
	ManagementTone     string   `json:"management_tone,omitempty"`
	KeyFinancials      []string `json:"key_financials,omitempty"`
	StrategicOutlook   []string `json:"strategic_outlook,omitempty"`
	Risks              []string `json:"risks_and_concerns,omitempty"`
	QAHighlights       []string `json:"key_qa_highlights,omitempty"`
	ComparisonWithPrev string   `json:"comparison_with_previous_call,omitempty"`

	Links     []Link `json:"links,omitempty"`
	SourceURL string `json:"original_pdf_url,omitempty"`

	ErrorKind string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ErrorPayload builds the KindError variant for a failed item.
func ErrorPayload(errorKind, message, company, sourceURL string) *Payload {
	return &Payload{
		Kind:      KindError,
		Company:   company,
		ErrorKind: errorKind,
		Message:   message,
		SourceURL: sourceURL,
	}
}

type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentLink ContentKind = "link"
)

// Content is what the extractor derived from a fetched attachment:
// either the full transcript text or a set of pointer links.
type Content struct {
	Kind  ContentKind
	Text  string
	Links []Link
}

// MediaLinks returns the subset of links pointing at downloadable media.
func (c Content) MediaLinks() []Link {
	var out []Link
	for _, l := range c.Links {
		if l.Type == LinkMedia {
			out = append(out, l)
		}
	}
	return out
}

// WebLinks returns the subset of plain web links.
func (c Content) WebLinks() []Link {
	var out []Link
	for _, l := range c.Links {
		if l.Type == LinkWeb {
			out = append(out, l)
		}
	}
	return out
}

// ComparisonContext carries the prior summary and incidentally
// discovered resource links used when diffing a new disclosure against
// the previous one for the same scrip.
type ComparisonContext struct {
	PriorSummary  *Payload
	PriorPDFURL   string
	PriorMediaURL string
}

type NotificationKind string

const (
	NotifySummary            NotificationKind = "summary"
	NotifyWebLink            NotificationKind = "web_link"
	NotifyWebLinkWithContext NotificationKind = "web_link_with_context"
	NotifyError              NotificationKind = "error"
)

// Notification is a closed delivery intent: the decision of what to
// deliver is made when it is constructed, only the side effect of
// delivery is deferred to the sequencer. Context, when set, lets the
// channel render prior-call material alongside the payload.
type Notification struct {
	Kind    NotificationKind
	Payload Payload
	Context *ComparisonContext
}
