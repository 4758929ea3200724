// Package extract is the boundary to the external structured-extraction
// service. The adapter turns raw document text into a ContractRecord; retry
// policy is owned by the caller, not the adapter.
package extract

import (
	"context"
	"errors"
)

// ErrRateLimited is returned when the extraction service throttles the call.
// Retryable with backoff.
var ErrRateLimited = errors.New("extract: rate limited")

// ErrMalformedResponse is returned when the service answers with text that
// does not parse as the expected schema. Retryable once with a stricter
// schema hint.
var ErrMalformedResponse = errors.New("extract: malformed response")

// ErrUnavailable is returned for transport or server failures. Not retryable;
// the unit fails without aborting the batch.
var ErrUnavailable = errors.New("extract: service unavailable")

// Adapter extracts structured contract fields from normalized document text.
// strict requests a tighter schema hint after a malformed response.
type Adapter interface {
	Extract(ctx context.Context, text string, strict bool) (*ContractRecord, error)
}
