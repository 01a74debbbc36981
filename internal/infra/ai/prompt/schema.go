package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

// SchemaName identifies the contract in structured-output requests.
const SchemaName = "threat_model"

var threatFields = []string{"category", "threat", "severity", "component", "mitigation", "codeSnippet"}

// Contract returns the required shape of the reasoning service output. The same
// definition constrains the request and validates the reply.
func Contract() *jsonschema.Definition {
	categories := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		categories = append(categories, string(c))
	}
	severities := make([]string, 0, len(domain.Severities))
	for _, s := range domain.Severities {
		severities = append(severities, string(s))
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"assets": {
				Type:        jsonschema.Array,
				Description: "At least 3 distinct system assets",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
			"threats": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"category":    {Type: jsonschema.String, Enum: categories},
						"threat":      {Type: jsonschema.String, Description: "Threat description"},
						"severity":    {Type: jsonschema.String, Enum: severities},
						"component":   {Type: jsonschema.String, Description: "Affected asset, one of assets"},
						"mitigation":  {Type: jsonschema.String},
						"codeSnippet": {Type: jsonschema.String, Description: "Example remediation snippet"},
					},
					Required:             threatFields,
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"assets", "threats"},
		AdditionalProperties: false,
	}
}

// Reply mirrors Contract.
type Reply struct {
	Assets  []string      `json:"assets"`
	Threats []ReplyThreat `json:"threats"`
}

type ReplyThreat struct {
	Category    string `json:"category"`
	Threat      string `json:"threat"`
	Severity    string `json:"severity"`
	Component   string `json:"component"`
	Mitigation  string `json:"mitigation"`
	CodeSnippet string `json:"codeSnippet"`
}

// DecodeReply parses payload against Contract. Any mismatch yields a
// MalformedReplyError; a partially valid reply is never returned.
func DecodeReply(payload []byte) (Reply, error) {
	var r Reply
	if err := jsonschema.VerifySchemaAndUnmarshal(*Contract(), payload, &r); err != nil {
		return Reply{}, domain.Malformed("reply does not match contract", err)
	}
	// The validator ignores additionalProperties; Reply mirrors every allowed field.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Reply{}); err != nil {
		return Reply{}, domain.Malformed("reply has fields outside contract", err)
	}
	for i, t := range r.Threats {
		if !domain.Category(t.Category).Valid() {
			return Reply{}, domain.Malformed(fmt.Sprintf("threat %d: unknown category %q", i, t.Category), nil)
		}
		if !domain.Severity(t.Severity).Valid() {
			return Reply{}, domain.Malformed(fmt.Sprintf("threat %d: unknown severity %q", i, t.Severity), nil)
		}
	}
	return r, nil
}
