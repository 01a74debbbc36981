package threatmodel

import "encoding/json"

// ArtifactRecord is one captured project file. The engine only reads it.
type ArtifactRecord struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// AnalysisRequest is the payload sent to the reasoning service. It is built once
// per analysis and resent unchanged on every retry.
type AnalysisRequest struct {
	Prompt string
	Schema json.Marshaler
}

// Asset labels a system component. The label is its identity.
type Asset = string

// Category enum (STRIDE)
type Category string

const (
	CategorySpoofing              Category = "Spoofing"
	CategoryTampering             Category = "Tampering"
	CategoryRepudiation           Category = "Repudiation"
	CategoryInformationDisclosure Category = "Information Disclosure"
	CategoryDenialOfService       Category = "Denial of Service"
	CategoryElevationOfPrivilege  Category = "Elevation of Privilege"
)

// Categories lists the STRIDE categories in canonical order.
var Categories = []Category{
	CategorySpoofing,
	CategoryTampering,
	CategoryRepudiation,
	CategoryInformationDisclosure,
	CategoryDenialOfService,
	CategoryElevationOfPrivilege,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Severity enum
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Threat is one STRIDE finding. ID is generated locally, never taken from the reply.
type Threat struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Description string   `json:"threat"`
	Severity    Severity `json:"severity"`
	Component   string   `json:"component"`
	Mitigation  string   `json:"mitigation"`
	CodeSnippet string   `json:"codeSnippet"`
}

// Node is a graph vertex; ID is the 1-based asset position as a decimal string.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Edge is a directed, labelled data flow between two nodes.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Summary aggregates threat counts for dashboard tiles.
type Summary struct {
	Severity   SeverityCounts   `json:"severity"`
	Categories map[Category]int `json:"categories"`
}

// AnalysisResult is the aggregate produced by one successful analysis.
// It is not mutated after construction.
type AnalysisResult struct {
	Assets    []Asset  `json:"assets"`
	Threats   []Threat `json:"threats"`
	DataFlows []string `json:"dataFlows"`
	Graph     Graph    `json:"graph"`
	Summary   Summary  `json:"summary"`
}
