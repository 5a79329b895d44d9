// Package gemini implements the enrichment.Enricher interface using Google's
// Gemini API to turn structured conflict evidence into prose rationale text.
//
// Key features:
//   - Prompt construction from a template over the conflict's evidence and
//     candidate set
//   - Structured JSON response parsing with per-candidate validation
//   - Retry logic with exponential backoff and jitter for transient errors
//   - Permanent errors (blocked content, malformed responses) fail fast so
//     the engine can fall back to templated rationale without burning the
//     scan's enrichment budget
//
// The engine treats every error from this package as a signal to degrade to
// local templates. Nothing here may ever be load-bearing for a scan.
package gemini
