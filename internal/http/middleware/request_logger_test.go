package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

func loggedRouter(buf *bytes.Buffer, level string) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(logging.NewWithWriter(buf, level)))
	r.Post("/appointments/{id}/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already cancelled"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return r
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLoggerLogsRoutePatternNotPath(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/appointments/6f1c0d2e/cancel", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	loggedRouter(&buf, "info").ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	assert.NotContains(t, buf.String(), "6f1c0d2e")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "/appointments/{id}/cancel", entry["route"])
	assert.Equal(t, float64(http.StatusConflict), entry["status"])
	assert.Equal(t, float64(len(`{"error":"already cancelled"}`)), entry["bytes"])
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	loggedRouter(&buf, "info").ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "health probes log at debug")

	loggedRouter(&buf, "debug").ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "DEBUG", decodeEntry(t, &buf)["level"])

	buf.Reset()
	loggedRouter(&buf, "info").ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, "ERROR", decodeEntry(t, &buf)["level"])
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	rr := httptest.NewRecorder()
	loggedRouter(&buf, "info").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	id := rr.Header().Get("X-Request-ID")
	assert.Len(t, id, 36)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, id, entry["request_id"])
	assert.Equal(t, "unmatched", entry["route"])
}
