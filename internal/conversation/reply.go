package conversation

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// ReplyInput is the state a reply is written for. Known already includes
// this message's extracted fields.
type ReplyInput struct {
	UserText  string
	History   []ChatMessage
	Known     *inquiries.Inquiry
	Extracted ExtractedData
	Blocked   bool
}

// ReplyGenerator writes the assistant's conversational reply. It never fails.
type ReplyGenerator interface {
	Generate(ctx context.Context, in ReplyInput) string
}

// LLMReplyGenerator asks a completion client for a reply and falls back to templates.
type LLMReplyGenerator struct {
	client  LLMClient
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
	pick    func(n int) int
}

// NewLLMReplyGenerator builds a generator; a nil client means templates only.
func NewLLMReplyGenerator(client LLMClient, m *metrics.ConversationMetrics, logger *logging.Logger) *LLMReplyGenerator {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMReplyGenerator{client: client, metrics: m, logger: logger, pick: rand.IntN}
}

func (g *LLMReplyGenerator) Generate(ctx context.Context, in ReplyInput) string {
	known := in.Known
	if known == nil {
		known = &inquiries.Inquiry{}
	}
	missing := firstMissing(known)

	if g.client != nil && !in.Blocked {
		resp, err := g.client.Complete(ctx, LLMRequest{
			System:      []string{replySystemPrompt},
			Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildReplyPrompt(in, missing)}},
			MaxTokens:   256,
			Temperature: 0.7,
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return strings.TrimSpace(resp.Text)
		}
		g.metrics.ObserveFallback("reply")
		g.logger.Warn("reply model unavailable, using templates", "error", err)
	}
	return g.template(in.UserText, known, missing)
}

func (g *LLMReplyGenerator) template(userText string, known *inquiries.Inquiry, missing string) string {
	opener := g.choose(openers[moodOf(userText, known.ExtractedSpecialty)])
	if missing == "" {
		return joinSentences(opener, g.choose(questions[""]))
	}
	return joinSentences(opener, acknowledge(known), g.choose(questions[missing]))
}

func (g *LLMReplyGenerator) choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	pick := g.pick
	if pick == nil {
		pick = rand.IntN
	}
	return options[pick(len(options))]
}
