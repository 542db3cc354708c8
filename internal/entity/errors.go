package entity

import "errors"

// Error taxonomy for the pseudonymization core. Callers classify failures
// with errors.Is; all wrapping uses fmt.Errorf("...: %w", err).
var (
	// ErrInvalidInput marks input that is not processable text (for example
	// invalid UTF-8). Empty input is not an error: it yields an empty result.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractorUnavailable marks a NER collaborator that could not be
	// reached or is not configured. Never swallowed: callers opt into
	// pattern-only mode explicitly.
	ErrExtractorUnavailable = errors.New("extractor unavailable")

	// ErrExtractorTimeout marks a NER call that exceeded the configured
	// deadline.
	ErrExtractorTimeout = errors.New("extractor timeout")

	// ErrPatternCompilation marks a malformed configured pattern override.
	// Detected at configuration time, never per document.
	ErrPatternCompilation = errors.New("pattern compilation failed")

	// ErrResolutionConflict marks a violated resolver invariant. If this
	// surfaces to a caller it is a defect, not a recoverable condition.
	ErrResolutionConflict = errors.New("resolution conflict")

	// ErrSessionClosed marks use of a session after Close.
	ErrSessionClosed = errors.New("session closed")
)
