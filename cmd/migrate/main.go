// Command migrate applies the embedded schema migrations.
//
// Usage: migrate [up | down [n] | goto <version> | version | force <version>]
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	appmigrations "github.com/wolfman30/therapymatch-ai/migrations"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// migrator is the part of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("migrate")

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	m, closeFn, err := open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open migrator", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	if err := run(m, os.Args[1:], os.Stdout); err != nil {
		logger.Error("migration failed", "args", os.Args[1:], "error", err)
		closeFn()
		os.Exit(1)
	}
}

func open(databaseURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}
	src, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

// run executes one command against m. No command means "up".
func run(m migrator, args []string, out io.Writer) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("up: %w", err)
		}
		fmt.Fprintln(out, "migrations complete")
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("down: step count must be a positive integer, got %q", args[1])
			}
			steps = n
		}
		if err := ignoreNoChange(m.Steps(-steps)); err != nil {
			return fmt.Errorf("down: %w", err)
		}
		fmt.Fprintf(out, "rolled back %d migration(s)\n", steps)
	case "goto":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := ignoreNoChange(m.Migrate(uint(version))); err != nil {
			return fmt.Errorf("goto %d: %w", version, err)
		}
		fmt.Fprintf(out, "migrated to version %d\n", version)
	case "force":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force %d: %w", version, err)
		}
		fmt.Fprintf(out, "forced version to %d\n", version)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Fprintf(out, "version %d (dirty=%t)\n", version, dirty)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a version", args[0])
	}
	version, err := strconv.Atoi(args[1])
	if err != nil || version < 0 {
		return 0, fmt.Errorf("%s: invalid version %q", args[0], args[1])
	}
	return version, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
