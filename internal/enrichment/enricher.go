package enrichment

import (
	"context"
	"encoding/json"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// Candidate is one resolution candidate submitted for rationale enrichment.
type Candidate struct {
	// Type is the candidate's resolution type.
	Type domain.ResolutionType

	// Params is the candidate's structured parameter payload.
	Params json.RawMessage

	// Fallback is the locally templated rationale the engine uses when
	// enrichment is unavailable.
	Fallback string
}

// Enricher defines the interface to the external text-generation
// collaborator that turns structured conflict facts into prose rationale.
// This interface is the boundary between the engine core and the external
// AI service: the engine must function with the collaborator absent or
// failing, degrading to the candidates' fallback rationale.
type Enricher interface {
	// EnrichRationales returns prose rationale per resolution type for the
	// given conflict's candidates. Missing keys in the result are allowed;
	// the caller keeps the fallback for those candidates.
	//
	// Implementations must respect the context deadline; the engine calls
	// this with a bounded timeout and treats any error as a signal to fall
	// back, never as a scan failure.
	EnrichRationales(
		ctx context.Context,
		conflict *domain.Conflict,
		candidates []Candidate,
	) (map[domain.ResolutionType]string, error)
}
