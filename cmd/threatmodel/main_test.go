package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/config"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/httpserver"
)

type stubAnalyzer struct {
	result *domain.AnalysisResult
	err    error
	got    []domain.ArtifactRecord
}

func (s *stubAnalyzer) Analyze(ctx context.Context, artifacts []domain.ArtifactRecord) (*domain.AnalysisResult, error) {
	s.got = artifacts
	if err := ctx.Err(); err != nil {
		return nil, domain.Canceled(err)
	}
	return s.result, s.err
}

func useAnalyzer(t *testing.T, a analyzer) {
	t.Helper()
	prev := newAnalyzer
	newAnalyzer = func(*config.Config, logrus.FieldLogger) analyzer { return a }
	t.Cleanup(func() { newAnalyzer = prev })
}

func project(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	t.Setenv("THREATMODEL_API_KEY", "test-key")
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	cfgPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o600))
	return dir, cfgPath
}

func result() *domain.AnalysisResult {
	g := domain.BuildGraph([]domain.Asset{"CLI"})
	return &domain.AnalysisResult{
		Assets:    []domain.Asset{"CLI"},
		Threats:   []domain.Threat{},
		Graph:     g,
		DataFlows: domain.DataFlows(g),
		Summary:   domain.Summarize(nil),
	}
}

func TestAnalyzeCommand(t *testing.T) {
	dir, cfgPath := project(t)
	stub := &stubAnalyzer{result: result()}
	useAnalyzer(t, stub)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"analyze", "--project", "shop", "--config", cfgPath, dir}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var env httpserver.Envelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env))
	assert.Equal(t, "shop", env.ProjectName)
	assert.Equal(t, []domain.Asset{"CLI"}, env.Result.Assets)
	require.Len(t, stub.got, 1)
	assert.Equal(t, "package main", stub.got[0].Content)
	assert.Contains(t, stderr.String(), "Analyzing 1 artifact(s) for shop")
}

func TestAnalyzeCommandWritesSARIFFile(t *testing.T) {
	dir, cfgPath := project(t)
	useAnalyzer(t, &stubAnalyzer{result: result()})
	out := filepath.Join(t.TempDir(), "shop.sarif")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(),
		[]string{"analyze", "-p", "shop", "-f", "sarif", "-o", out, "-c", cfgPath, dir}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Empty(t, stdout.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "2.1.0"`)
}

func TestAnalyzeCommandInterrupted(t *testing.T) {
	dir, cfgPath := project(t)
	useAnalyzer(t, &stubAnalyzer{result: result()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := execute(ctx, []string{"analyze", "--project", "shop", "--config", cfgPath, dir}, &stdout, &stderr)

	assert.Equal(t, exitInterrupted, code)
	assert.Empty(t, stdout.String())
	assert.NotContains(t, stderr.String(), "Error:")
}

func TestAnalyzeCommandErrors(t *testing.T) {
	dir, cfgPath := project(t)
	useAnalyzer(t, &stubAnalyzer{err: &domain.TransportError{StatusCode: 503, Attempts: 5}})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing project flag", []string{"analyze", "--config", cfgPath, dir}, `required flag(s) "project" not set`},
		{"no paths", []string{"analyze", "--project", "shop"}, "requires at least 1 arg"},
		{"bad format", []string{"analyze", "--project", "shop", "--format", "xml", dir}, "unsupported format"},
		{"service down", []string{"analyze", "--project", "shop", "--config", cfgPath, dir}, "reasoning service unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := execute(context.Background(), tc.args, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), tc.want)
		})
	}
}

func TestSchemaCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, execute(context.Background(), []string{"schema"}, &stdout, &stderr))

	var schema map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestWriteResultUsesClock(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", "shop", application.FixedClock{T: at}, result()))
	assert.Contains(t, buf.String(), `"generated_at": "2024-02-03T04:05:06Z"`)
}

func TestWriteOutputFileReportsCloseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, writeOutputFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "{}")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	// Closing early makes the deferred close fail.
	err = writeOutputFile(path, func(w io.Writer) error {
		return w.(*os.File).Close()
	})
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.ErrorContains(t, err, "close output")

	writeErr := errors.New("disk full")
	err = writeOutputFile(path, func(w io.Writer) error { return writeErr })
	assert.ErrorIs(t, err, writeErr)
}
