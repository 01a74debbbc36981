package threatmodel

import (
	"strings"

	"github.com/google/uuid"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/prompt"
)

// IDGenerator assigns threat ids. Ids must be unique within one result.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// Normalizer turns a reply payload into an AnalysisResult.
type Normalizer struct {
	IDs IDGenerator
}

// Normalize decodes payload against the schema contract and derives the graph,
// data flows and summary. It either returns a complete result or an error.
func (n Normalizer) Normalize(payload string) (*domain.AnalysisResult, error) {
	reply, err := prompt.DecodeReply([]byte(stripFence(payload)))
	if err != nil {
		return nil, err
	}

	ids := n.IDs
	if ids == nil {
		ids = UUIDGenerator{}
	}

	assets := domain.DedupAssets(reply.Assets)
	threats := make([]domain.Threat, 0, len(reply.Threats))
	for _, t := range reply.Threats {
		threats = append(threats, domain.Threat{
			ID:          ids.NewID(),
			Category:    domain.Category(t.Category),
			Description: t.Threat,
			Severity:    domain.Severity(t.Severity),
			Component:   strings.TrimSpace(t.Component),
			Mitigation:  t.Mitigation,
			CodeSnippet: t.CodeSnippet,
		})
	}

	graph := domain.BuildGraph(assets)
	return &domain.AnalysisResult{
		Assets:    assets,
		Threats:   threats,
		DataFlows: domain.DataFlows(graph),
		Graph:     graph,
		Summary:   domain.Summarize(threats),
	}, nil
}

// stripFence removes a ```json ... ``` wrapper some models add despite instructions.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "json")
	}
	if end := strings.LastIndex(t, "```"); end >= 0 {
		t = t[:end]
	}
	return strings.TrimSpace(t)
}
