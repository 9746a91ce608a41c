package bse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

// HTTPStatusError carries the status code of a non-2xx exchange
// response so the classifier can tell rate limits from hard failures.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Operation, e.Status)
}

func newHTTPStatusError(operation string, resp *http.Response) *HTTPStatusError {
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

// raiseDistress trips the shared throttle when one is wired. Called at
// the moment a malformed body is observed so the signal survives a
// retry that later succeeds.
func raiseDistress(sig ports.DistressSignal) {
	if sig != nil {
		sig.Raise()
	}
}

// classifyExchangeError decides retry behavior for all exchange call
// sites. Malformed structured responses (wrapped as upstream distress)
// retry and count against the breaker; caller cancellation never
// retries.
func classifyExchangeError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	if domain.IsKind(err, domain.ErrUpstreamDistress) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	// Per-attempt timeouts surface as deadline errors; connection-level
	// failures as net.Error. Both are transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
