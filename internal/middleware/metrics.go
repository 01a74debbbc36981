package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal       uint64
	RequestsInProgress  uint64
	RequestsSuccess     uint64
	RequestsFailed      uint64
	AnalysesTotal       uint64
	AnalysesRunning     uint64
	AnalysesSucceeded   uint64
	AnalysesCanceled    uint64
	AnalysesUnavailable uint64
	AnalysesMalformed   uint64
	StartTime           time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// StartAnalysis counts an analysis as running; call the returned func with
// its outcome when it finishes.
func (m *Metrics) StartAnalysis() func(err error) {
	atomic.AddUint64(&m.AnalysesTotal, 1)
	atomic.AddUint64(&m.AnalysesRunning, 1)
	return func(err error) {
		atomic.AddUint64(&m.AnalysesRunning, ^uint64(0))
		switch {
		case err == nil:
			atomic.AddUint64(&m.AnalysesSucceeded, 1)
		case errors.Is(err, domain.ErrCanceled):
			atomic.AddUint64(&m.AnalysesCanceled, 1)
		case errors.Is(err, domain.ErrMalformedReply):
			atomic.AddUint64(&m.AnalysesMalformed, 1)
		case errors.Is(err, domain.ErrTransportFailure):
			atomic.AddUint64(&m.AnalysesUnavailable, 1)
		}
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"analyses": map[string]uint64{
			"total":       atomic.LoadUint64(&m.AnalysesTotal),
			"running":     atomic.LoadUint64(&m.AnalysesRunning),
			"succeeded":   atomic.LoadUint64(&m.AnalysesSucceeded),
			"canceled":    atomic.LoadUint64(&m.AnalysesCanceled),
			"unavailable": atomic.LoadUint64(&m.AnalysesUnavailable),
			"malformed":   atomic.LoadUint64(&m.AnalysesMalformed),
		},
		"uptime_seconds": time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
