package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/middleware"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *domain.AnalysisResult
	err    error
	got    []domain.ArtifactRecord
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, artifacts []domain.ArtifactRecord) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = artifacts
	return f.result, f.err
}

type fakeSource struct {
	mu        sync.Mutex
	artifacts []domain.ArtifactRecord
	prefix    string
}

func (f *fakeSource) Collect(ctx context.Context, prefix string) ([]domain.ArtifactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefix = prefix
	return f.artifacts, nil
}

var generatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleResult() *domain.AnalysisResult {
	threats := []domain.Threat{{
		ID: "t-1", Category: domain.CategoryTampering, Description: "Unsigned webhook",
		Severity: domain.SeverityHigh, Component: "API", Mitigation: "Verify HMAC", CodeSnippet: "hmac.Equal(a, b)",
	}}
	g := domain.BuildGraph([]domain.Asset{"Web", "API"})
	return &domain.AnalysisResult{
		Assets:    []domain.Asset{"Web", "API"},
		Threats:   threats,
		Graph:     g,
		DataFlows: domain.DataFlows(g),
		Summary:   domain.Summarize(threats),
	}
}

func newTestServer(t *testing.T, a Analyzer, src domain.ArtifactSource, rl *middleware.RateLimiter) (*httptest.Server, *middleware.Metrics) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := middleware.NewMetrics()
	srv := httptest.NewServer(NewRouter(Deps{
		Analyzer:    a,
		Source:      src,
		Limits:      domain.Limits{MaxArtifactBytes: 1024, MaxArtifacts: 3},
		Clock:       application.FixedClock{T: generatedAt},
		Metrics:     m,
		RateLimiter: rl,
		Log:         log,
	}))
	t.Cleanup(srv.Close)
	return srv, m
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAnalyze(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	srv, m := newTestServer(t, a, nil, nil)

	resp := postJSON(t, srv.URL+"/v1/analyze",
		`{"project_name":"shop","artifacts":[{"name":"app.py","content":"print(1)"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "shop", env.ProjectName)
	assert.True(t, generatedAt.Equal(env.GeneratedAt))
	assert.Equal(t, sampleResult(), env.Result)
	assert.Equal(t, []domain.ArtifactRecord{{Name: "app.py", Content: "print(1)"}}, a.got)
	assert.EqualValues(t, 1, atomic.LoadUint64(&m.AnalysesSucceeded))
}

func TestAnalyzeSARIF(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{result: sampleResult()}, nil, nil)

	resp := postJSON(t, srv.URL+"/v1/analyze?format=sarif",
		`{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/sarif+json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"ruleId": "stride/tampering"`)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{
			name:       "transport failure",
			err:        &domain.TransportError{StatusCode: 500, Attempts: 5},
			body:       `{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   unavailableMessage,
			wantCalls:  1,
		},
		{
			name:       "malformed reply",
			err:        domain.Malformed("missing field threats", nil),
			body:       `{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   unavailableMessage,
			wantCalls:  1,
		},
		{
			name:       "canceled",
			err:        domain.Canceled(context.Canceled),
			body:       `{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`,
			wantStatus: StatusClientClosedRequest,
			wantCalls:  1,
		},
		{
			name:       "missing project",
			body:       `{"artifacts":[{"name":"a","content":"b"}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "project name is required",
		},
		{
			name:       "no artifacts",
			body:       `{"project_name":"shop","artifacts":[]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "at least one artifact",
		},
		{
			name:       "oversized artifact",
			body:       `{"project_name":"shop","artifacts":[{"name":"a","content":"` + strings.Repeat("x", 2000) + `"}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "max 1024",
		},
		{
			name:       "unknown field",
			body:       `{"project_name":"shop","files":[]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid JSON body",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &fakeAnalyzer{err: tc.err}
			srv, _ := newTestServer(t, a, nil, nil)

			resp := postJSON(t, srv.URL+"/v1/analyze", tc.body)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.wantBody == "" {
				assert.Empty(t, body)
			} else {
				assert.Contains(t, string(body), tc.wantBody)
			}
			assert.Equal(t, tc.wantCalls, a.calls)
		})
	}
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	srv, _ := newTestServer(t, a, nil, nil)

	resp := postJSON(t, srv.URL+"/v1/analyze?format=xml", `{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, a.calls)
}

func TestUpload(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	srv, _ := newTestServer(t, a, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("project_name", "shop"))
	for name, content := range map[string]string{"main.go": "package main", "Dockerfile": "FROM scratch"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/analyze/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, []domain.ArtifactRecord{
		{Name: "main.go", Content: "package main"},
		{Name: "Dockerfile", Content: "FROM scratch"},
	}, a.got)
}

func TestUploadRejectsBinary(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	srv, _ := newTestServer(t, a, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("project_name", "shop"))
	fw, err := mw.CreateFormFile("files", "app.exe")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("MZ\x00\x00"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/analyze/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, a.calls)
}

func TestBucket(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	src := &fakeSource{artifacts: []domain.ArtifactRecord{{Name: "shop/app.py", Content: "x"}}}
	srv, _ := newTestServer(t, a, src, nil)

	resp := postJSON(t, srv.URL+"/v1/analyze/bucket", `{"project_name":"shop","prefix":"shop/"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shop/", src.prefix)
	assert.Equal(t, src.artifacts, a.got)

	resp = postJSON(t, srv.URL+"/v1/analyze/bucket", `{"project_name":"shop","prefix":"../etc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBucketWithoutSource(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{}, nil, nil)

	resp := postJSON(t, srv.URL+"/v1/analyze/bucket", `{"project_name":"shop","prefix":"shop/"}`)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "no artifact bucket is configured")
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{result: sampleResult()}, nil, middleware.NewRateLimiter(1, 0.01))
	body := `{"project_name":"shop","artifacts":[{"name":"a","content":"b"}]}`

	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/v1/analyze", body).StatusCode)
	resp := postJSON(t, srv.URL+"/v1/analyze", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestSchemaAndProbes(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{}, nil, nil)

	resp, err := http.Get(srv.URL + "/v1/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	var schema map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schema))
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"assets", "threats"}, schema["required"])

	for _, path := range []string{"/health", "/healthz", "/healthz/live", "/healthz/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
