// Package enrichment defines the boundary to the external text-generation
// collaborator that produces prose rationale for resolution candidates.
// The engine treats the collaborator as optional: every call site carries a
// timeout and falls back to templated rationale on any failure.
package enrichment
