package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/calendar"
	"github.com/wolfman30/therapymatch-ai/internal/conversation"
	"github.com/wolfman30/therapymatch-ai/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/therapymatch-ai/internal/http/middleware"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/internal/webchat"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	TherapistsHandler   *therapists.Handler
	BookingsHandler     *bookings.Handler
	WebChat             *webchat.Handler
	CalendarOAuth       *calendar.OAuthHandler
	AdminAuthSecret     string
	AdminAudience       string
	MetricsHandler      http.Handler
	MetricsGatherer     prometheus.Gatherer
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int

	// Admin dashboard dependencies (optional)
	DB *sql.DB

	// Health checks (optional)
	Database Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics, OAuth redirects)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Database))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.CalendarOAuth != nil {
			public.Route("/oauth/google", func(r chi.Router) {
				r.Get("/connect", cfg.CalendarOAuth.Connect)
				r.Get("/callback", cfg.CalendarOAuth.Callback)
			})
		}
	})

	// Patient-facing API, rate limited per client IP
	r.Group(func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		if cfg.ConversationHandler != nil {
			api.Post("/chat", cfg.ConversationHandler.Chat)
			api.Post("/handle-chat", cfg.ConversationHandler.Chat)
		}
		if cfg.WebChat != nil {
			api.Get("/chat/ws", cfg.WebChat.HandleWebSocket)
		}

		if cfg.TherapistsHandler != nil {
			api.Route("/therapists", func(r chi.Router) {
				r.Post("/search", cfg.TherapistsHandler.Search)
				r.Get("/{therapistID}/availability", cfg.TherapistsHandler.Availability)
			})
		}

		if cfg.BookingsHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.BookingsHandler.Book)
				r.Get("/{appointmentID}", cfg.BookingsHandler.Get)
				r.Post("/{appointmentID}/cancel", cfg.BookingsHandler.Cancel)
				r.Post("/{appointmentID}/reschedule", cfg.BookingsHandler.Reschedule)
			})
			api.Get("/inquiries/{inquiryID}/appointments", cfg.BookingsHandler.ListForInquiry)
		}
	})

	// Admin routes (protected by HS256 JWT)
	if cfg.AdminAuthSecret != "" && cfg.DB != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.WithAudience(cfg.AdminAudience)))
			handlers.RegisterAdminRoutes(admin, cfg.DB, cfg.MetricsGatherer, cfg.Logger)
		})
	}

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
