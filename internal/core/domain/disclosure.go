package domain

import "time"

type DisclosureStatus string

const (
	StatusPending    DisclosureStatus = "PENDING"
	StatusFetched    DisclosureStatus = "FETCHED"
	StatusSummarized DisclosureStatus = "SUMMARIZED"
	StatusFailed     DisclosureStatus = "FAILED"
)

// Terminal reports whether no further automatic mutation may occur.
func (s DisclosureStatus) Terminal() bool {
	return s == StatusSummarized || s == StatusFailed
}

// Disclosure is the unit of work and of persistence: one corporate
// announcement tied to one scrip at one point in time.
type Disclosure struct {
	ID         string
	ScripCode  string
	Company    string
	OccurredAt time.Time
	IngestedAt time.Time
	Status     DisclosureStatus
	Payload    *Payload
}

// Candidate is one row of the upstream announcement list, before any
// local state exists for it.
type Candidate struct {
	ID         string
	ScripCode  string
	Company    string
	OccurredAt time.Time
}

// HistoricalRecord is a disclosure in the append-mostly historical
// store. Its payload is written at most once, by the just-in-time
// summarization path.
type HistoricalRecord struct {
	ID            string
	ScripCode     string
	Company       string
	OccurredAt    time.Time
	AttachmentURL string
	Payload       *Payload
}
