package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the provider boundary and the calculator.
// Instrument-level errors never escalate to run-level failure; only
// store-level or configuration errors abort an entire run.
var (
	// ErrNoData means the provider answered successfully but has no bars
	// for the instrument (delisted or bad symbol). Terminal for the
	// instrument in the current run; not retried automatically.
	ErrNoData = errors.New("provider returned no data")

	// ErrProviderUnavailable means the provider could not be reached
	// after bounded retries. The instrument keeps its stale series.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited is a transient throttle response, retried with
	// backoff before degrading to ErrProviderUnavailable.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrInsufficientHistory excludes an instrument (or the benchmark)
	// from scoring when its series cannot cover all configured periods.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrInvalidBenchmarkDenominator flags a run date where
	// 1 + weighted benchmark return is zero or negative.
	ErrInvalidBenchmarkDenominator = errors.New("invalid benchmark denominator")
)

// ValidationError reports a malformed daily bar or weight config. It is
// rejected locally and reported to the caller without aborting the batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsInstrumentError reports whether err is scoped to a single instrument
// and therefore must not abort a batch.
func IsInstrumentError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrInvalidBenchmarkDenominator) ||
		errors.As(err, &ve)
}
