package prompt

import (
	"regexp"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

// Redaction records one secret pattern replaced before the artifacts leave the process.
type Redaction struct {
	Artifact string `json:"artifact"`
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
}

const redactedMarker = "[REDACTED]"

var detectors = []struct {
	re   *regexp.Regexp
	kind string
}{
	// Private keys
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "private key"},
	// AWS
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "aws access key"},
	{regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*["']?[A-Za-z0-9/+=]{20,}`), "aws secret key"},
	// GitHub
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), "github token"},
	{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "github pat"},
	// Google
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "google api key"},
	// Slack
	{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), "slack token"},
	// Stripe
	{regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), "stripe key"},
	// OpenAI
	{regexp.MustCompile(`sk-[A-Za-z0-9\-_]{20,}`), "openai key"},
	// JWT/Bearer-like
	{regexp.MustCompile(`[A-Za-z0-9-_]{8,}\.eyJ[A-Za-z0-9-_]{5,}\.[A-Za-z0-9-_]{10,}`), "jwt"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-\._~\+\/]{16,}=*`), "bearer token"},
	// URL with basic auth
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "url credentials"},
}

// Redact returns copies of the artifacts with known secret formats replaced by a
// marker, plus what was replaced. Artifact names and order are kept. The inputs
// are not modified.
func Redact(artifacts []domain.ArtifactRecord) ([]domain.ArtifactRecord, []Redaction) {
	out := make([]domain.ArtifactRecord, len(artifacts))
	var found []Redaction
	for i, a := range artifacts {
		content := a.Content
		for _, d := range detectors {
			n := len(d.re.FindAllStringIndex(content, -1))
			if n == 0 {
				continue
			}
			replacement := redactedMarker
			if d.kind == "url credentials" {
				replacement = "://" + redactedMarker + "@"
			}
			content = d.re.ReplaceAllLiteralString(content, replacement)
			found = append(found, Redaction{Artifact: a.Name, Kind: d.kind, Count: n})
		}
		out[i] = domain.ArtifactRecord{Name: a.Name, Content: content}
	}
	return out, found
}
