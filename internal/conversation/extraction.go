package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// greetingMaxLen bounds messages eligible for the greeting short-circuit.
const greetingMaxLen = 20

var greetings = map[string]struct{}{
	"hi": {}, "hii": {}, "hello": {}, "hey": {}, "heya": {}, "hiya": {}, "howdy": {}, "yo": {},
	"hi there": {}, "hello there": {}, "hey there": {}, "greetings": {}, "namaste": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
}

// ExtractionInput is everything the extractor may look at for one message.
type ExtractionInput struct {
	UserText string
	History  []ChatMessage
	Known    *inquiries.Inquiry
	Pending  []therapists.Summary
	// Blocked skips the model and uses the deterministic reading.
	Blocked bool
}

// Extractor turns a user message into structured data. It never fails.
type Extractor interface {
	Extract(ctx context.Context, in ExtractionInput) ExtractedData
}

// LLMExtractor asks a completion client for JSON and falls back to keyword rules.
type LLMExtractor struct {
	client  LLMClient
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

// NewLLMExtractor builds an extractor; a nil client means rules only.
func NewLLMExtractor(client LLMClient, m *metrics.ConversationMetrics, logger *logging.Logger) *LLMExtractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMExtractor{client: client, metrics: m, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, in ExtractionInput) ExtractedData {
	if IsGreeting(in.UserText) {
		return Unspecified()
	}
	if e.client == nil || in.Blocked {
		return FallbackExtract(in)
	}

	resp, err := e.client.Complete(ctx, LLMRequest{
		System:      []string{extractionSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildExtractionPrompt(in)}},
		MaxTokens:   512,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		e.metrics.ObserveFallback("extraction")
		e.logger.Warn("extraction model unavailable, using keyword rules", "error", err)
		return FallbackExtract(in)
	}

	data, err := parseExtraction(resp.Text)
	if err != nil {
		e.metrics.ObserveFallback("extraction")
		e.logger.Warn("extraction reply unreadable, using keyword rules", "error", err)
		return FallbackExtract(in)
	}
	return validateExtraction(data, in)
}

// IsGreeting reports whether text is only a short greeting.
func IsGreeting(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || len(t) >= greetingMaxLen {
		return false
	}
	t = strings.TrimRight(t, "!.,?~ ")
	_, ok := greetings[t]
	return ok
}

func parseExtraction(raw string) (ExtractedData, error) {
	text := stripCodeFence(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ExtractedData{}, errors.New("conversation: no json object in extraction reply")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &probe); err != nil {
		return ExtractedData{}, fmt.Errorf("conversation: decode extraction: %w", err)
	}
	_, hasProblem := probe["problem"]
	_, hasSchedule := probe["schedule"]
	_, hasInsurance := probe["insurance"]
	if !hasProblem && !hasSchedule && !hasInsurance {
		return ExtractedData{}, errors.New("conversation: extraction reply missing fields")
	}

	var data ExtractedData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return ExtractedData{}, fmt.Errorf("conversation: decode extraction: %w", err)
	}
	return data, nil
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// validateExtraction drops selections that do not index the pending list.
func validateExtraction(data ExtractedData, in ExtractionInput) ExtractedData {
	if data.BookingIntent == "" {
		data.BookingIntent = IntentUnspecified
	}
	if sel := data.Selection(); sel < 1 || sel > len(in.Pending) {
		data.TherapistSelection = nil
	}
	return data
}
