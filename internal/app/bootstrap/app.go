package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/therapymatch-ai/cmd/mainconfig"
	"github.com/wolfman30/therapymatch-ai/internal/api/router"
	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/calendar"
	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/conversation"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/internal/webchat"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// App is the assembled API process.
type App struct {
	Handler http.Handler
	Stores  *Stores

	closers []func()
}

// Close releases every connection the app opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires stores, collaborators, engines and handlers from cfg.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{}

	stores, err := BuildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Stores = stores
	app.closers = append(app.closers, stores.Close)

	reg, metricsHandler := NewMetricsRegistry()
	convMetrics := metrics.NewConversationMetrics(reg)
	llmMetrics := metrics.NewLLMMetrics(reg)
	bookingMetrics := metrics.NewBookingMetrics(reg)

	var awsCfg *aws.Config
	if strings.TrimSpace(cfg.BedrockModelID) != "" || strings.TrimSpace(cfg.SESFromEmail) != "" {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	llm, err := BuildLLMClients(ctx, cfg, awsCfg, llmMetrics, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	bookingOpts := []bookings.Option{bookings.WithMetrics(bookingMetrics)}
	notifier, provider := BuildNotifier(cfg, awsCfg, logger)
	bookingOpts = append(bookingOpts, bookings.WithNotifier(notifier))
	logger.Info("booking notifications configured", "provider", provider)

	var oauthHandler *calendar.OAuthHandler
	if cfg.CalendarOAuthConfigured() {
		oauthCfg := calendar.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		bookingOpts = append(bookingOpts, bookings.WithCalendar(calendar.NewGoogleCalendar(oauthCfg)))
		oauthHandler = calendar.NewOAuthHandler(oauthCfg, stores.Therapists, cfg.GoogleClientSecret, cfg.OAuthSuccessURL, logger)
	} else {
		logger.Warn("google calendar not configured; bookings will carry a calendar sync warning")
	}

	engine := bookings.NewService(stores.Appointments, stores.Inquiries, stores.Therapists, logger, bookingOpts...)
	matcher := therapists.NewMatcher(stores.Therapists)
	slots := appointments.NewAvailabilityChecker(stores.Appointments, time.Now)

	deps := OrchestratorDeps{
		Config:      cfg,
		Stores:      stores,
		LLM:         llm,
		Matcher:     matcher,
		Slots:       slots,
		Bookings:    engine,
		ConvMetrics: convMetrics,
		Logger:      logger,
	}
	if redisClient := BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		deps.Redis = redisClient
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	orch, err := BuildOrchestrator(deps)
	if err != nil {
		app.Close()
		return nil, err
	}

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(orch, logger),
		TherapistsHandler:   therapists.NewHandler(matcher, slots, stores.Therapists, logger),
		BookingsHandler:     bookings.NewHandler(engine, logger),
		WebChat: webchat.NewHandler(webchat.Deps{
			Orchestrator: orch,
			Matcher:      matcher,
			Bookings:     engine,
			Inquiries:    stores.Inquiries,
			TimeZone:     cfg.DefaultTimeZone,
		}, logger),
		CalendarOAuth:      oauthHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		AdminAudience:      cfg.AdminJWTAudience,
		MetricsHandler:     metricsHandler,
		MetricsGatherer:    reg,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		DB:                 stores.SQL,
		Database:           stores,
	}
	app.Handler = router.New(routerCfg)
	return app, nil
}
