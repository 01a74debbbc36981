package prompt

import (
	"fmt"
	"strings"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

const instructions = `Act as a senior application security architect performing a STRIDE threat model of the project above.

Requirements:
- Identify at least 3 system assets (services, data stores, gateways, queues, external integrations). List each asset once.
- Derive threats using the six STRIDE categories: Spoofing, Tampering, Repudiation, Information Disclosure, Denial of Service, Elevation of Privilege.
- Assign each threat a severity: Critical, High, Medium or Low.
- Set "component" to the affected asset, spelled exactly as it appears in "assets".
- Give a concrete mitigation and one example remediation code snippet per threat.

Respond with one JSON object only, matching the schema. Do not add prose, markdown or code fences around it.`

// Build concatenates the artifacts under "--- FILE: <name> ---" headers and
// appends the analysis instructions. The content is embedded verbatim.
func Build(artifacts []domain.ArtifactRecord) string {
	var b strings.Builder
	for _, a := range artifacts {
		fmt.Fprintf(&b, "--- FILE: %s ---\n", a.Name)
		b.WriteString(a.Content)
		if !strings.HasSuffix(a.Content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString(instructions)
	return b.String()
}

// SystemPrompt provides strict directions and the schema for JSON output. It is
// sent alongside the structured-output constraint for services that only honour
// plain JSON mode.
func SystemPrompt() string {
	return `You are a senior application security architect. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Schema (example with empty values):
{
  "assets": ["<string>", "<string>", "<string>"],
  "threats": [
    {
      "category": "<Spoofing|Tampering|Repudiation|Information Disclosure|Denial of Service|Elevation of Privilege>",
      "threat": "<string>",
      "severity": "<Critical|High|Medium|Low>",
      "component": "<one of assets>",
      "mitigation": "<string>",
      "codeSnippet": "<string>"
    }
  ]
}`
}
