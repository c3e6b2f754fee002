package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// LLMLatencyFamily is the fully qualified name of the LLM latency histogram.
const LLMLatencyFamily = namespace + "_llm_latency_seconds"

// LatencyBucket is one non-cumulative histogram bucket.
type LatencyBucket struct {
	LeSeconds float64 `json:"leSeconds"`
	Overflow  bool    `json:"overflow,omitempty"`
	Count     int64   `json:"count"`
}

// LatencySnapshot summarises successful LLM calls gathered from a registry.
type LatencySnapshot struct {
	Total   int64           `json:"total"`
	P50Ms   float64         `json:"p50Ms"`
	P95Ms   float64         `json:"p95Ms"`
	Buckets []LatencyBucket `json:"buckets"`
}

// SnapshotLLMLatency aggregates the LLM latency histogram across models,
// counting only status="ok" observations.
func SnapshotLLMLatency(gatherer prometheus.Gatherer) LatencySnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return LatencySnapshot{}
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == LLMLatencyFamily {
			family = mf
			break
		}
	}
	if family == nil {
		return LatencySnapshot{}
	}

	cumulative := map[float64]uint64{}
	var total uint64
	for _, metric := range family.GetMetric() {
		if metric == nil || !hasLabel(metric, "status", "ok") {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		total += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if total == 0 {
		return LatencySnapshot{}
	}
	// Client histograms omit the +Inf bucket; it always equals the sample count.
	cumulative[math.Inf(1)] = total

	uppers := make([]float64, 0, len(cumulative))
	for upper := range cumulative {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	buckets := make([]LatencyBucket, 0, len(uppers))
	var prev uint64
	var lastFinite float64
	for _, upper := range uppers {
		cum := cumulative[upper]
		count := int64(0)
		if cum >= prev {
			count = int64(cum - prev)
		}
		prev = cum
		if math.IsInf(upper, 1) {
			if count > 0 {
				buckets = append(buckets, LatencyBucket{LeSeconds: lastFinite, Overflow: true, Count: count})
			}
			continue
		}
		lastFinite = upper
		buckets = append(buckets, LatencyBucket{LeSeconds: upper, Count: count})
	}

	return LatencySnapshot{
		Total:   int64(total),
		P50Ms:   quantile(0.50, total, uppers, cumulative) * 1000,
		P95Ms:   quantile(0.95, total, uppers, cumulative) * 1000,
		Buckets: buckets,
	}
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

// quantile interpolates linearly inside the bucket holding the q-th
// observation. Observations past the last finite bound report that bound.
func quantile(q float64, total uint64, uppers []float64, cumulative map[float64]uint64) float64 {
	rank := q * float64(total)
	var prevUpper float64
	var prevCum uint64
	for _, upper := range uppers {
		cum := cumulative[upper]
		if float64(cum) >= rank {
			if math.IsInf(upper, 1) {
				return prevUpper
			}
			inBucket := float64(cum - prevCum)
			if inBucket == 0 {
				return upper
			}
			return prevUpper + (upper-prevUpper)*(rank-float64(prevCum))/inBucket
		}
		prevUpper = upper
		prevCum = cum
	}
	return prevUpper
}
