package enrichment

import "errors"

// Common errors returned by enricher implementations.
var (
	// ErrEnrichmentFailed is returned when rationale enrichment fails for
	// any general reason.
	ErrEnrichmentFailed = errors.New("failed to enrich rationale text")

	// ErrEnrichmentTimeout is returned when the collaborator did not answer
	// within the configured deadline.
	ErrEnrichmentTimeout = errors.New("rationale enrichment timed out")

	// ErrInvalidResponse is returned when the collaborator's response cannot
	// be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from enrichment service")

	// ErrInvalidConfig is returned when the enricher configuration is invalid.
	ErrInvalidConfig = errors.New("invalid enricher configuration")
)
