package threatmodel

import "context"

// ReasoningClient performs one logical request/response exchange with the
// reasoning service and returns the textual payload of the reply.
type ReasoningClient interface {
	Complete(ctx context.Context, req AnalysisRequest) (string, error)
}

// ArtifactSource yields captured artifacts stored under a prefix.
type ArtifactSource interface {
	Collect(ctx context.Context, prefix string) ([]ArtifactRecord, error)
}
