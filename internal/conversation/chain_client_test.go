package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
)

type slowLLM struct{ delay time.Duration }

func (s slowLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	select {
	case <-time.After(s.delay):
		return LLMResponse{Text: "late"}, nil
	case <-ctx.Done():
		return LLMResponse{}, ctx.Err()
	}
}

func TestChainUsesNextProviderOnFailure(t *testing.T) {
	primary := &scriptedLLM{errs: []error{errors.New("model not found")}}
	backup := &scriptedLLM{responses: []LLMResponse{{Text: "hello", Usage: TokenUsage{InputTokens: 3, OutputTokens: 1}}}}
	reg := prometheus.NewRegistry()

	chain := NewChainLLMClient(time.Second, metrics.NewLLMMetrics(reg), nil,
		ChainStep{Name: "gemini", Client: primary, Model: "gemini-2.0-flash"},
		ChainStep{Name: "bedrock", Client: backup},
	)

	resp, err := chain.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "gemini-2.0-flash", primary.requests[0].Model)
	assert.Equal(t, "", backup.requests[0].Model)

	count, err := testutil.GatherAndCount(reg, "therapymatch_llm_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChainTreatsEmptyTextAsFailure(t *testing.T) {
	empty := &scriptedLLM{responses: []LLMResponse{{Text: "   "}}}
	backup := &scriptedLLM{responses: []LLMResponse{{Text: "hello"}}}

	chain := NewChainLLMClient(time.Second, nil, nil,
		ChainStep{Name: "gemini", Client: empty, Model: "gemini-2.0-flash"},
		ChainStep{Name: "gemini-lite", Client: backup, Model: "gemini-2.0-flash-lite"},
	)

	resp, err := chain.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "gemini-2.0-flash-lite", backup.requests[0].Model)
}

func TestChainTriesAtMostOneAlternate(t *testing.T) {
	a := &scriptedLLM{errs: []error{errors.New("a down")}}
	b := &scriptedLLM{errs: []error{errors.New("b down")}}
	c := &scriptedLLM{responses: []LLMResponse{{Text: "never"}}}

	chain := NewChainLLMClient(time.Second, nil, nil,
		ChainStep{Name: "gemini", Client: a},
		ChainStep{Name: "gemini-fallback", Client: b},
		ChainStep{Name: "bedrock", Client: c},
	)
	assert.Equal(t, 2, chain.Len())

	extractor := NewLLMExtractor(chain, nil, nil)
	data := extractor.Extract(context.Background(), ExtractionInput{UserText: "I feel anxious on mondays"})

	assert.Len(t, a.requests, 1)
	assert.Len(t, b.requests, 1)
	assert.Empty(t, c.requests)
	assert.Equal(t, "anxiety", data.Problem.Value(), "rules take over once the chain is exhausted")
}

func TestChainReturnsLastError(t *testing.T) {
	chain := NewChainLLMClient(time.Second, nil, nil,
		ChainStep{Name: "a", Client: &scriptedLLM{errs: []error{errors.New("first")}}},
		ChainStep{Name: "b", Client: &scriptedLLM{errs: []error{errors.New("second")}}},
	)
	_, err := chain.Complete(context.Background(), LLMRequest{})
	require.Error(t, err)
	assert.Equal(t, "second", err.Error())
}

func TestChainSharesOneBudget(t *testing.T) {
	next := &scriptedLLM{responses: []LLMResponse{{Text: "never"}}}
	chain := NewChainLLMClient(30*time.Millisecond, nil, nil,
		ChainStep{Name: "slow", Client: slowLLM{delay: time.Second}},
		ChainStep{Name: "next", Client: next},
	)

	_, err := chain.Complete(context.Background(), LLMRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, next.requests)
}

func TestChainWithoutProviders(t *testing.T) {
	chain := NewChainLLMClient(0, nil, nil, ChainStep{Name: "nil"})
	assert.Equal(t, 0, chain.Len())
	_, err := chain.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, ErrNoProviders)
}
