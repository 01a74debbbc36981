package threatmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitsCheck(t *testing.T) {
	l := Limits{MaxArtifactBytes: 10, MaxArtifacts: 2}

	tests := []struct {
		name      string
		artifacts []ArtifactRecord
		wantErr   string
	}{
		{"ok", []ArtifactRecord{{Name: "a.go", Content: "package a"}}, ""},
		{"empty", nil, "at least one artifact"},
		{"too many", []ArtifactRecord{{Name: "a", Content: "x"}, {Name: "b", Content: "x"}, {Name: "c", Content: "x"}}, "too many artifacts"},
		{"unnamed", []ArtifactRecord{{Name: " ", Content: "x"}}, "name is required"},
		{"oversized", []ArtifactRecord{{Name: "big", Content: strings.Repeat("x", 11)}}, "is 11 bytes"},
		{"nul byte", []ArtifactRecord{{Name: "bin", Content: "a\x00b"}}, "not UTF-8 text"},
		{"invalid utf8", []ArtifactRecord{{Name: "bin", Content: "\xff\xfe"}}, "not UTF-8 text"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Check(tc.artifacts)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLimitsZeroDisablesBounds(t *testing.T) {
	err := Limits{}.Check([]ArtifactRecord{{Name: "a", Content: strings.Repeat("x", 1<<20)}})
	assert.NoError(t, err)
}
