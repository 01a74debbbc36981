// Package report renders analysis results in exchange formats.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

const (
	ToolName = "ai-threat-model"
	ToolURI  = "https://github.com/SUBRATAxTL/ai-threat-model-app"
)

var categoryHelp = map[domain.Category]string{
	domain.CategorySpoofing:              "Pretending to be another user, service or component.",
	domain.CategoryTampering:             "Unauthorized modification of data or code.",
	domain.CategoryRepudiation:           "Performing actions that cannot be traced to their actor.",
	domain.CategoryInformationDisclosure: "Exposure of information to someone not authorized to see it.",
	domain.CategoryDenialOfService:       "Degrading or denying service to legitimate users.",
	domain.CategoryElevationOfPrivilege:  "Gaining capabilities without proper authorization.",
}

// RuleID is the SARIF rule identifier for a STRIDE category.
func RuleID(c domain.Category) string {
	return "stride/" + strings.ReplaceAll(strings.ToLower(string(c)), " ", "-")
}

// Level maps a severity onto a SARIF result level.
func Level(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical, domain.SeverityHigh:
		return "error"
	case domain.SeverityMedium:
		return "warning"
	case domain.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

// SARIF converts a result into a SARIF 2.1.0 report with one run. Every STRIDE
// category is declared as a rule; each threat becomes a result located at its
// component, and the data-flow graph is attached to the run.
func SARIF(projectName string, result *domain.AnalysisResult) (*sarif.Report, error) {
	if result == nil {
		return nil, fmt.Errorf("no analysis result to report")
	}
	rep, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, ToolURI)
	for _, c := range domain.Categories {
		run.AddRule(RuleID(c)).
			WithName(strings.ReplaceAll(string(c), " ", "")).
			WithDescription(categoryHelp[c])
	}

	for _, t := range result.Threats {
		loc := sarif.NewLocation().WithLogicalLocations([]*sarif.LogicalLocation{
			sarif.NewLogicalLocation().WithName(t.Component).WithKind("module"),
		})

		props := sarif.NewPropertyBag()
		props.Add("threatId", t.ID)
		props.Add("severity", string(t.Severity))
		props.Add("mitigation", t.Mitigation)
		props.Add("codeSnippet", t.CodeSnippet)
		if projectName != "" {
			props.Add("project", projectName)
		}

		res := sarif.NewRuleResult(RuleID(t.Category)).
			WithMessage(sarif.NewTextMessage(t.Description)).
			WithLevel(Level(t.Severity)).
			WithLocations([]*sarif.Location{loc})
		res.AttachPropertyBag(props)
		run.AddResult(res)
	}

	if len(result.Graph.Nodes) > 0 {
		g := sarif.NewGraph().WithDescription(sarif.NewTextMessage("data flows between assets"))
		for _, n := range result.Graph.Nodes {
			g.AddNode(sarif.NewNode(n.ID).WithLabel(sarif.NewTextMessage(n.Label)))
		}
		for i, e := range result.Graph.Edges {
			g.AddEdge(sarif.NewEdge(fmt.Sprintf("e%d", i+1), e.From, e.To).WithLabel(sarif.NewTextMessage(e.Label)))
		}
		run.AddGraph(g)
	}

	rep.AddRun(run)
	return rep, nil
}

// WriteSARIF renders result as indented SARIF JSON to w.
func WriteSARIF(w io.Writer, projectName string, result *domain.AnalysisResult) error {
	rep, err := SARIF(projectName, result)
	if err != nil {
		return err
	}
	return rep.PrettyWrite(w)
}
