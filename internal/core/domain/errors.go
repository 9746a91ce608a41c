package domain

import (
	"errors"
	"fmt"
)

// Failure kinds for a single disclosure. Every per-item failure is
// converted to exactly one of these at the item boundary; none of them
// may abort the pool or the poll cycle.
var (
	// ErrTransient covers timeouts, 5xx and connection resets; retried
	// by the resilience executor before it surfaces.
	ErrTransient = errors.New("transient network failure")

	// ErrUpstreamDistress marks a malformed structured response, which
	// correlates with upstream rate-limiting. Retried, and additionally
	// trips the pool-wide throttle.
	ErrUpstreamDistress = errors.New("upstream distress")

	// ErrNotFound: well-formed response with no attachment or content.
	// Terminal for the item, never retried.
	ErrNotFound = errors.New("no attachment found")

	// ErrContentUnusable: extracted content has no actionable link or
	// text. Terminal.
	ErrContentUnusable = errors.New("content unusable")

	// ErrSummarization: the summarizer exhausted its own retries.
	// Terminal, recorded as a FAILED row for manual follow-up.
	ErrSummarization = errors.New("summarization failure")

	// ErrStorage: local persistence error. Logged; the in-memory result
	// still reaches the notification path for this run.
	ErrStorage = errors.New("storage failure")
)

// WrapError preserves typed failure kinds with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FailureKind maps an item error onto the label stored in the error
// payload and the run report. Unrecognized errors count as
// summarization failures so they stay visible rather than silently
// dropped.
func FailureKind(err error) string {
	switch {
	case IsKind(err, ErrUpstreamDistress):
		return "upstream_distress"
	case IsKind(err, ErrTransient):
		return "transient_network"
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrContentUnusable):
		return "content_unusable"
	case IsKind(err, ErrStorage):
		return "storage_failure"
	default:
		return "summarization_failure"
	}
}
