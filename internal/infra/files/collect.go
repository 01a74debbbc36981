// Package files reads local project artifacts for analysis.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

// Collect reads every path into an artifact. Directories are walked, skipping
// hidden entries; files found by a walk that are binary or oversized are
// skipped with a warning, while named files that break a limit are an error.
func Collect(paths []string, limits domain.Limits, log logrus.FieldLogger) ([]domain.ArtifactRecord, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var out []domain.ArtifactRecord
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			content, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", p, err)
			}
			name := filepath.ToSlash(p)
			if err := limits.CheckArtifact(name, content); err != nil {
				return nil, err
			}
			out = append(out, domain.ArtifactRecord{Name: name, Content: string(content)})
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			name := filepath.ToSlash(path)
			if err := limits.CheckArtifact(name, content); err != nil {
				log.WithField("file", name).Warnf("skipping file: %v", err)
				return nil
			}
			out = append(out, domain.ArtifactRecord{Name: name, Content: string(content)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := limits.CheckCount(len(out)); err != nil {
		return nil, err
	}
	log.WithField("artifacts", len(out)).Debug("collected local artifacts")
	return out, nil
}
