package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; session locks fall back to in-process", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Stores groups the repositories the API needs. Pool and SQL are nil in
// in-memory mode.
type Stores struct {
	Pool         *pgxpool.Pool
	SQL          *sql.DB
	Inquiries    inquiries.Repository
	Therapists   therapists.Repository
	Appointments appointments.Repository
}

// BuildStores connects to Postgres when DATABASE_URL is set and falls back to
// in-memory repositories otherwise.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		return &Stores{
			Inquiries:    inquiries.NewInMemoryRepository(),
			Therapists:   therapists.NewInMemoryRepository(),
			Appointments: appointments.NewInMemoryRepository(),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	return &Stores{
		Pool:         pool,
		SQL:          stdlib.OpenDBFromPool(pool),
		Inquiries:    inquiries.NewPostgresRepository(pool),
		Therapists:   therapists.NewPostgresRepository(pool),
		Appointments: appointments.NewPostgresRepository(pool),
	}, nil
}

// Ping checks the database connection; in-memory stores are always healthy.
func (s *Stores) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases database handles.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	if s.SQL != nil {
		_ = s.SQL.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// NewMetricsRegistry returns a registry with runtime collectors and its scrape handler.
func NewMetricsRegistry() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
