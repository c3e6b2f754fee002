package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/conversation"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// LLMClients are the language-model collaborators built from config.
type LLMClients struct {
	// Text is nil when no provider is configured; the rules fallbacks then run alone.
	Text      conversation.LLMClient
	Tools     conversation.ToolCallingClient
	ToolModel string
}

// BuildLLMClients wires Gemini (primary then fallback model) and Bedrock into
// one chain sharing cfg.LLMTimeout. awsCfg may be nil when Bedrock is unused.
func BuildLLMClients(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.LLMMetrics, logger *logging.Logger) (*LLMClients, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var steps []conversation.ChainStep
	out := &LLMClients{}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		steps = append(steps, conversation.ChainStep{Name: "gemini", Client: gemini, Model: cfg.GeminiModel})
		if fb := strings.TrimSpace(cfg.GeminiFallbackModel); fb != "" && fb != cfg.GeminiModel {
			steps = append(steps, conversation.ChainStep{Name: "gemini-fallback", Client: gemini, Model: fb})
		}
		out.Tools = gemini
		out.ToolModel = cfg.GeminiModel
	}

	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without aws config; skipping", "model", model)
		} else {
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), model)
			steps = append(steps, conversation.ChainStep{Name: "bedrock", Client: bedrock, Model: model})
		}
	}

	if len(steps) == 0 {
		logger.Warn("no LLM provider configured; using rule-based extraction and replies")
		return out, nil
	}
	chain := conversation.NewChainLLMClient(cfg.LLMTimeout, m, logger, steps...)
	out.Text = chain
	logger.Info("llm chain configured", "providers", chain.Len(), "tools", out.Tools != nil)
	return out, nil
}

// OrchestratorDeps are the collaborators BuildOrchestrator wires together.
type OrchestratorDeps struct {
	Config      *appconfig.Config
	Stores      *Stores
	LLM         *LLMClients
	Redis       redis.UniversalClient
	Matcher     *therapists.Matcher
	Slots       *appointments.AvailabilityChecker
	Bookings    bookings.Engine
	ConvMetrics *metrics.ConversationMetrics
	Logger      *logging.Logger
}

// BuildOrchestrator assembles the pipeline strategy, the optional tool
// strategy and the session locker.
func BuildOrchestrator(deps OrchestratorDeps) (*conversation.Orchestrator, error) {
	if deps.Config == nil || deps.Stores == nil {
		return nil, fmt.Errorf("bootstrap: config and stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	llm := deps.LLM
	if llm == nil {
		llm = &LLMClients{}
	}

	pipeline := conversation.NewPipelineStrategy(
		conversation.NewLLMExtractor(llm.Text, deps.ConvMetrics, logger),
		conversation.NewLLMReplyGenerator(llm.Text, deps.ConvMetrics, logger),
		logger,
	)

	opts := []conversation.OrchestratorOption{
		conversation.WithMode(deps.Config.OrchestrationMode),
		conversation.WithDefaultTimeZone(deps.Config.DefaultTimeZone),
		conversation.WithConversationMetrics(deps.ConvMetrics),
		conversation.WithTherapistLookup(deps.Stores.Therapists),
	}

	if deps.Redis != nil {
		opts = append(opts, conversation.WithSessionLocker(conversation.NewRedisSessionLocker(deps.Redis, deps.Config.SessionLockTTL)))
	} else {
		opts = append(opts, conversation.WithSessionLocker(conversation.NewLocalSessionLocker()))
	}

	if llm.Tools != nil && deps.Matcher != nil && deps.Slots != nil && deps.Bookings != nil {
		tools := conversation.NewToolStrategy(conversation.ToolDeps{
			Client:     llm.Tools,
			Model:      llm.ToolModel,
			Matcher:    deps.Matcher,
			Slots:      deps.Slots,
			Therapists: deps.Stores.Therapists,
			Bookings:   deps.Bookings,
			Inquiries:  deps.Stores.Inquiries,
		}, deps.ConvMetrics, logger)
		opts = append(opts, conversation.WithToolStrategy(tools))
	} else if deps.Config.OrchestrationMode == appconfig.OrchestrationTools {
		logger.Warn("ORCHESTRATION_MODE=tools but no tool-calling model is configured; using the pipeline")
	}

	return conversation.NewOrchestrator(deps.Stores.Inquiries, pipeline, logger, opts...), nil
}
