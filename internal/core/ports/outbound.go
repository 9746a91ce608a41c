package ports

import (
	"context"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// DisclosureStore persists live-run processing state. It is the single
// source of truth for dedup: concurrent InsertPending calls for the
// same id must resolve to exactly one logical insert.
type DisclosureStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	// NeedsWork reports whether the record exists and has not reached a
	// terminal status yet.
	NeedsWork(ctx context.Context, id string) (bool, error)
	// InsertPending creates the record in PENDING state. A record that
	// already exists is a no-op, not an error; uniqueness is enforced
	// by the storage layer.
	InsertPending(ctx context.Context, cand domain.Candidate) error
	MarkFetched(ctx context.Context, id string) error
	// RecordResult is an idempotent terminal write of payload + status.
	RecordResult(ctx context.Context, id string, payload *domain.Payload, status domain.DisclosureStatus) error
}

// HistoricalStore is the append-mostly store backing comparisons.
type HistoricalStore interface {
	// LatestBefore returns the record for scripCode with the greatest
	// occurred_at strictly before the given date, ties broken by
	// ingestion order. (nil, nil) when none exists.
	LatestBefore(ctx context.Context, scripCode string, before time.Time) (*domain.HistoricalRecord, error)
	// Insert stores a new historical record; duplicates (by id or
	// attachment URL) are silently skipped.
	Insert(ctx context.Context, rec domain.HistoricalRecord) error
	// SetPayloadOnce persists the JIT summary if, and only if, the
	// record has no payload yet. Returns false when another caller
	// already won the write.
	SetPayloadOnce(ctx context.Context, id string, payload *domain.Payload) (bool, error)
}

// CandidateSource fetches the paginated announcement list for a window.
type CandidateSource interface {
	List(ctx context.Context, from, to time.Time) ([]domain.Candidate, error)
}

// DistressSignal is the shared throttle handle. Adapters raise it the
// moment they observe a malformed upstream response, before their own
// retries run, so the pool slows down even when the retry eventually
// succeeds.
type DistressSignal interface {
	Raise()
}

// AttachmentResolver turns an item id + scrip code into a downloadable
// URL. An empty URL with nil error means the upstream response was
// well-formed but carried no attachment.
type AttachmentResolver interface {
	Resolve(ctx context.Context, id, scripCode string) (string, error)
}

// AttachmentFetcher downloads a resource into local scratch space and
// returns the file path. Release removes the scratch file; it is safe
// to call on every exit path.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, url, hint string) (string, error)
	Release(path string)
}

// ContentExtractor derives transcript text or pointer links from a
// downloaded attachment.
type ContentExtractor interface {
	Extract(ctx context.Context, path string) (domain.Content, error)
}

// SummarizeRequest carries everything the generative collaborator
// needs for one summarization call.
type SummarizeRequest struct {
	Content   domain.Content
	Company   string
	SourceURL string
	// Prior is the previous call's summary, compared against in the
	// full notification-grade prompt.
	Prior *domain.Payload
	// Historical selects the reduced-field JIT summary used only as
	// comparison context.
	Historical bool
}

// Summarizer produces the structured payload for extracted content.
// Implementations never return (nil, nil): a failed attempt surfaces
// either an error or a KindError payload.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (*domain.Payload, error)
}

// Notifier delivers one notification to the outbound channel.
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

// EventPublisher announces terminal records to downstream consumers.
type EventPublisher interface {
	PublishProcessed(ctx context.Context, id string, status domain.DisclosureStatus) error
}
