package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "therapymatch"

// ConversationMetrics exposes counters/histograms for chat turns.
type ConversationMetrics struct {
	turnsTotal   *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
	fallbacks    *prometheus.CounterVec
	crisisTotal  prometheus.Counter
	lockWaits    *prometheus.CounterVec
	toolRequests *prometheus.CounterVec
}

// NewConversationMetrics registers conversation metrics on reg (default registerer when nil).
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Chat turns handled, by strategy and resulting next action",
		}, []string{"strategy", "next_action"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a chat turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "deterministic_fallback_total",
			Help:      "Times extraction or reply generation fell back to deterministic rules",
		}, []string{"stage"}),
		crisisTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "crisis_responses_total",
			Help:      "Messages answered with crisis resources",
		}),
		lockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "session_lock_total",
			Help:      "Session lock acquisitions by outcome",
		}, []string{"outcome"}),
		toolRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the language model",
		}, []string{"tool", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.fallbacks, m.crisisTotal, m.lockWaits, m.toolRequests)
	return m
}

func (m *ConversationMetrics) ObserveTurn(strategy, nextAction string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(strategy, nextAction).Inc()
	m.turnLatency.WithLabelValues(strategy).Observe(seconds)
}

func (m *ConversationMetrics) ObserveFallback(stage string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(stage).Inc()
}

func (m *ConversationMetrics) ObserveCrisis() {
	if m == nil {
		return
	}
	m.crisisTotal.Inc()
}

func (m *ConversationMetrics) ObserveSessionLock(outcome string) {
	if m == nil {
		return
	}
	m.lockWaits.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolRequests.WithLabelValues(tool, status).Inc()
}

// LLMMetrics tracks calls to the text-completion collaborators.
type LLMMetrics struct {
	latency *prometheus.HistogramVec
	tokens  *prometheus.CounterVec
}

func NewLLMMetrics(reg prometheus.Registerer) *LLMMetrics {
	m := &LLMMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of LLM completion calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"model", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by LLM calls",
		}, []string{"model", "type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.latency, m.tokens)
	return m
}

func (m *LLMMetrics) ObserveCall(model, status string, seconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(model, status).Observe(seconds)
	if inputTokens > 0 {
		m.tokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.tokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// BookingMetrics tracks booking engine outcomes.
type BookingMetrics struct {
	outcomes     *prometheus.CounterVec
	calendarSync *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking operations by outcome",
		}, []string{"operation", "outcome"}),
		calendarSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "calendar_sync_total",
			Help:      "External calendar sync attempts by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomes, m.calendarSync)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveCalendarSync(status string) {
	if m == nil {
		return
	}
	m.calendarSync.WithLabelValues(status).Inc()
}
