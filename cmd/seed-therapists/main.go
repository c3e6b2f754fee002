package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// seedNamespace derives stable ids for entries that omit one, so reseeding
// the same file updates rows instead of duplicating them.
var seedNamespace = uuid.MustParse("6f1c7a52-3b8e-4d4a-9a57-2f0d3c1e8b11")

type seedFile struct {
	Therapists []seedTherapist `json:"therapists"`
}

type seedTherapist struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Bio               string   `json:"bio"`
	Email             string   `json:"email"`
	Specialties       []string `json:"specialties"`
	AcceptedInsurance []string `json:"acceptedInsurance"`
	Active            *bool    `json:"isActive"`
}

type upserter interface {
	Upsert(ctx context.Context, t therapists.Therapist) error
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: seed-therapists <therapists.json>")
		fmt.Println("Example: seed-therapists testdata/therapists.json")
		os.Exit(1)
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read seed file", "error", err)
		os.Exit(1)
	}
	list, err := parseSeed(data)
	if err != nil {
		logger.Error("parse seed file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	n, err := seed(ctx, therapists.NewPostgresRepository(pool), list, logger)
	if err != nil {
		logger.Error("seed failed", "error", err, "seeded", n)
		os.Exit(1)
	}
	logger.Info("therapists seeded", "count", n)
}

func parseSeed(data []byte) ([]therapists.Therapist, error) {
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out := make([]therapists.Therapist, 0, len(file.Therapists))
	for i, s := range file.Therapists {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("therapist %d: name is required", i)
		}
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = uuid.NewSHA1(seedNamespace, []byte(strings.ToLower(name))).String()
		} else if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("therapist %q: invalid id: %w", name, err)
		}
		active := true
		if s.Active != nil {
			active = *s.Active
		}
		out = append(out, therapists.Therapist{
			ID:                id,
			Name:              name,
			Bio:               strings.TrimSpace(s.Bio),
			Email:             strings.TrimSpace(s.Email),
			Specialties:       s.Specialties,
			AcceptedInsurance: s.AcceptedInsurance,
			IsActive:          active,
		})
	}
	return out, nil
}

func seed(ctx context.Context, repo upserter, list []therapists.Therapist, logger *logging.Logger) (int, error) {
	for i, t := range list {
		if err := repo.Upsert(ctx, t); err != nil {
			return i, fmt.Errorf("%s: %w", t.Name, err)
		}
		logger.Info("therapist upserted", "id", t.ID, "name", t.Name)
	}
	return len(list), nil
}
