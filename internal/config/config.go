package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PTVUserID string
	PTVAPIKey string

	DatabaseURL   string
	EnableDBWrite bool

	RouteType       int
	PollInterval    time.Duration
	ParallelWorkers int
	RequestTimeout  time.Duration
	RetentionHours  int

	// MaxTrackedVehicles bounds the change-detection cache; 0 keeps the
	// historical unbounded behaviour.
	MaxTrackedVehicles int

	NATSURL         string
	LogNATSSubjects bool
	MetricsAddr     string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.PTVUserID = strings.TrimSpace(os.Getenv("PTV_USER_ID"))
	cfg.PTVAPIKey = strings.TrimSpace(os.Getenv("PTV_API_KEY"))
	if cfg.PTVUserID == "" || cfg.PTVAPIKey == "" {
		return nil, errors.New("PTV_USER_ID and PTV_API_KEY must be set")
	}

	cfg.EnableDBWrite = envBool("ENABLE_DB_WRITE", true)

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Only required when writes are enabled; dry-run needs no database.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		db := os.Getenv("PGDATABASE")
		if db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	}
	if dsn == "" && cfg.EnableDBWrite {
		return nil, errors.New("DATABASE_URL (or PGDATABASE) must be set when ENABLE_DB_WRITE is true")
	}
	cfg.DatabaseURL = dsn

	// Route type selector (0=train, 1=tram, 2=bus, 3=vline)
	if v := os.Getenv("ROUTE_TYPE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 3 {
			return nil, fmt.Errorf("invalid ROUTE_TYPE: %q", v)
		}
		cfg.RouteType = n
	}

	// Poll interval
	if v := os.Getenv("POLL_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL_SEC: %q", v)
		}
		cfg.PollInterval = time.Duration(sec) * time.Second
	} else {
		cfg.PollInterval = 30 * time.Second
	}

	// Fetch fan-out width
	if v := os.Getenv("PARALLEL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid PARALLEL_WORKERS: %q", v)
		}
		cfg.ParallelWorkers = n
	} else {
		cfg.ParallelWorkers = 10
	}

	// Per-request timeout
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT_SEC: %q", v)
		}
		cfg.RequestTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.RequestTimeout = 15 * time.Second
	}

	// Storage retention horizon
	if v := os.Getenv("RETENTION_HOURS"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid RETENTION_HOURS: %q", v)
		}
		cfg.RetentionHours = h
	} else {
		cfg.RetentionHours = 24
	}

	// Change-detection cache bound (0 = unbounded)
	if v := os.Getenv("MAX_TRACKED_VEHICLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_TRACKED_VEHICLES: %q", v)
		}
		cfg.MaxTrackedVehicles = n
	}

	// NATS publishing is opt-in; empty URL disables it.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.LogNATSSubjects = envBool("LOG_NATS_SUBJECTS", false)

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
