package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const defaultChainBudget = 8 * time.Second

// maxChainSteps is the primary model plus one alternate.
const maxChainSteps = 2

// ErrNoProviders is returned by an empty chain.
var ErrNoProviders = errors.New("conversation: no llm providers configured")

// ChainStep is one provider attempt in a ChainLLMClient.
type ChainStep struct {
	Name   string
	Client LLMClient
	// Model overrides the request model for this step when set.
	Model string
}

// ChainLLMClient tries each step in order until one returns non-empty text.
// All attempts share a single timeout budget.
type ChainLLMClient struct {
	steps   []ChainStep
	budget  time.Duration
	metrics *metrics.LLMMetrics
	logger  *logging.Logger
}

// NewChainLLMClient builds a chain; nil clients are skipped and only the first
// two remaining steps are kept.
func NewChainLLMClient(budget time.Duration, m *metrics.LLMMetrics, logger *logging.Logger, steps ...ChainStep) *ChainLLMClient {
	if budget <= 0 {
		budget = defaultChainBudget
	}
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]ChainStep, 0, maxChainSteps)
	for _, step := range steps {
		if step.Client == nil {
			continue
		}
		if len(kept) == maxChainSteps {
			logger.Warn("llm chain full; ignoring provider", "provider", step.Name, "model", step.Model)
			continue
		}
		kept = append(kept, step)
	}
	return &ChainLLMClient{steps: kept, budget: budget, metrics: m, logger: logger}
}

// Len reports how many providers the chain holds.
func (c *ChainLLMClient) Len() int {
	if c == nil {
		return 0
	}
	return len(c.steps)
}

// Complete runs the chain. The returned error is the last provider's error.
func (c *ChainLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if c.Len() == 0 {
		return LLMResponse{}, ErrNoProviders
	}
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	var lastErr error
	for i, step := range c.steps {
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("conversation: llm budget exhausted before %s: %w", step.Name, err)
			break
		}
		attempt := req
		if step.Model != "" {
			attempt.Model = step.Model
		}
		label := step.Name
		if attempt.Model != "" {
			label = attempt.Model
		}

		started := time.Now()
		resp, err := step.Client.Complete(ctx, attempt)
		elapsed := time.Since(started).Seconds()
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = errors.New("conversation: empty completion")
		}
		if err != nil {
			c.metrics.ObserveCall(label, "error", elapsed, 0, 0)
			c.logger.Warn("llm provider failed",
				"provider", step.Name,
				"model", attempt.Model,
				"attempt", i+1,
				"remaining", len(c.steps)-i-1,
				"error", err,
			)
			lastErr = err
			continue
		}
		c.metrics.ObserveCall(label, "ok", elapsed, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
		if i > 0 {
			c.logger.Info("llm fallback provider succeeded", "provider", step.Name)
		}
		return resp, nil
	}
	return LLMResponse{}, lastErr
}
