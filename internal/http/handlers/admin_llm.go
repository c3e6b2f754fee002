package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
)

// LLMLatencyHandler reports the successful LLM call latency distribution.
func LLMLatencyHandler(gatherer prometheus.Gatherer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.SnapshotLLMLatency(gatherer))
	}
}
