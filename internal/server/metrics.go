package server

import (
	"encoding/json"
	"net/http"
	"sync"
)

// metrics holds in-process counters exposed at /metricz.
type metrics struct {
	mu sync.Mutex

	uploadsTotal      int64
	uploadBytesTotal  int64
	uploadErrorsTotal int64

	downloadsTotal      int64
	downloadErrorsTotal int64

	loginAttemptsTotal int64
	loginSuccessTotal  int64
	loginFailuresTotal int64

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64
}

var globalMetrics = &metrics{}

func getMetrics() *metrics { return globalMetrics }

func (m *metrics) recordUpload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
}

func (m *metrics) recordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *metrics) recordDownload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
}

func (m *metrics) recordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

func (m *metrics) recordLoginAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
}

func (m *metrics) recordLoginSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginSuccessTotal++
}

func (m *metrics) recordLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginFailuresTotal++
}

func (m *metrics) recordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

func (m *metrics) snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"uploads_total":         m.uploadsTotal,
		"upload_bytes_total":    m.uploadBytesTotal,
		"upload_errors_total":   m.uploadErrorsTotal,
		"downloads_total":       m.downloadsTotal,
		"download_errors_total": m.downloadErrorsTotal,
		"login_attempts_total":  m.loginAttemptsTotal,
		"login_success_total":   m.loginSuccessTotal,
		"login_failures_total":  m.loginFailuresTotal,
		"requests_total":        m.requestsTotal,
		"request_errors_4xx":    m.requestErrors4xx,
		"request_errors_5xx":    m.requestErrors5xx,
	}
}

// metricsHandler serves the counters as JSON.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(getMetrics().snapshot())
}
