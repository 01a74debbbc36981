package threatmodel

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Limits bound what callers may submit for one analysis. Zero disables a bound.
type Limits struct {
	MaxArtifactBytes int64
	MaxArtifacts     int
}

// CheckCount rejects an empty artifact set or one above MaxArtifacts.
func (l Limits) CheckCount(n int) error {
	if n == 0 {
		return Invalid("at least one artifact is required")
	}
	if l.MaxArtifacts > 0 && n > l.MaxArtifacts {
		return Invalid("too many artifacts: %d (max %d)", n, l.MaxArtifacts)
	}
	return nil
}

// CheckArtifact rejects unnamed, oversized or non-text artifacts.
func (l Limits) CheckArtifact(name string, content []byte) error {
	if strings.TrimSpace(name) == "" {
		return Invalid("artifact name is required")
	}
	if l.MaxArtifactBytes > 0 && int64(len(content)) > l.MaxArtifactBytes {
		return Invalid("artifact %q is %d bytes (max %d)", name, len(content), l.MaxArtifactBytes)
	}
	if IsBinary(content) {
		return Invalid("artifact %q is not UTF-8 text", name)
	}
	return nil
}

// Check validates a complete artifact set.
func (l Limits) Check(artifacts []ArtifactRecord) error {
	if err := l.CheckCount(len(artifacts)); err != nil {
		return err
	}
	for _, a := range artifacts {
		if err := l.CheckArtifact(a.Name, []byte(a.Content)); err != nil {
			return err
		}
	}
	return nil
}

// IsBinary reports content holding NUL bytes or invalid UTF-8.
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content)
}
