package threatmodel

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	EdgeLabelDataCall = "Data/API Call"
	EdgeLabelAuthSync = "Auth Sync"

	// UnknownLabel stands in for an edge endpoint that resolves to no node.
	UnknownLabel = "Unknown"
)

// DedupAssets trims labels, drops blanks and repeats, and keeps first-seen order.
func DedupAssets(labels []string) []Asset {
	seen := make(map[string]struct{}, len(labels))
	out := make([]Asset, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// BuildGraph synthesizes a ring over the ordered assets: a chain edge between
// every consecutive pair and, past two assets, a closing edge from the last back
// to the first. The reasoning service supplies no edges, so this approximates a
// typical request path with an auth back-reference. It does not describe the
// real topology.
func BuildGraph(assets []Asset) Graph {
	g := Graph{
		Nodes: make([]Node, 0, len(assets)),
		Edges: make([]Edge, 0, len(assets)),
	}
	for i, a := range assets {
		g.Nodes = append(g.Nodes, Node{ID: nodeID(i), Label: a})
	}
	for i := 0; i+1 < len(assets); i++ {
		g.Edges = append(g.Edges, Edge{From: nodeID(i), To: nodeID(i + 1), Label: EdgeLabelDataCall})
	}
	if n := len(assets); n > 2 {
		g.Edges = append(g.Edges, Edge{From: nodeID(n - 1), To: nodeID(0), Label: EdgeLabelAuthSync})
	}
	return g
}

func nodeID(i int) string { return strconv.Itoa(i + 1) }

// DataFlows renders one "<from> -> <to> (<label>)" line per edge.
func DataFlows(g Graph) []string {
	labels := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n.ID] = n.Label
	}
	resolve := func(id string) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return UnknownLabel
	}
	out := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, fmt.Sprintf("%s -> %s (%s)", resolve(e.From), resolve(e.To), e.Label))
	}
	return out
}

// Summarize counts threats by severity and by STRIDE category.
func Summarize(threats []Threat) Summary {
	s := Summary{Categories: make(map[Category]int, len(Categories))}
	for _, c := range Categories {
		s.Categories[c] = 0
	}
	for _, t := range threats {
		switch t.Severity {
		case SeverityCritical:
			s.Severity.Critical++
		case SeverityHigh:
			s.Severity.High++
		case SeverityMedium:
			s.Severity.Medium++
		case SeverityLow:
			s.Severity.Low++
		}
		s.Severity.Total++
		s.Categories[t.Category]++
	}
	return s
}
