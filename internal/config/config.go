package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	// RunMigrations applies embedded goose migrations at startup.
	RunMigrations bool
	LogLevel      string

	ScanWorkers  int
	AuditTimeout time.Duration
	AxeScriptURL string
	// BrowserURL is the DevTools websocket of a remote Chrome. Empty launches
	// a local headless Chrome.
	BrowserURL string

	SweepSchedule    string // cron spec
	SweepBatchSize   int
	EmailMaxAttempts int
	ResendAPIKey     string
	EmailFrom        string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

// ErrNoDatabase is returned alongside a usable Config when DATABASE_URL is
// unset; callers decide whether that is fatal.
var ErrNoDatabase = errors.New("DATABASE_URL not set")

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads .env.local and .env (missing files are ignored; real
// environment variables win) and builds the Config.
func Load() (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Env:              getenv("APP_ENV", "development"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RunMigrations:    getenvBool("RUN_MIGRATIONS", true),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		ScanWorkers:      getenvInt("SCAN_WORKERS", 0),
		AuditTimeout:     getenvDuration("AUDIT_TIMEOUT", 45*time.Second),
		AxeScriptURL:     getenv("AXE_SCRIPT_URL", "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"),
		BrowserURL:       os.Getenv("BROWSER_URL"),
		SweepSchedule:    getenv("SWEEP_SCHEDULE", "@hourly"),
		SweepBatchSize:   getenvInt("SWEEP_BATCH_SIZE", 100),
		EmailMaxAttempts: getenvInt("EMAIL_MAX_ATTEMPTS", 3),
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		EmailFrom:        getenv("EMAIL_FROM", "Inclusiv <hello@inclusiv.app>"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getenvInt("REDIS_DB", 0),
	}
	if cfg.AuditTimeout <= 0 {
		return cfg, fmt.Errorf("AUDIT_TIMEOUT must be positive, got %s", cfg.AuditTimeout)
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == "production" }

func loadEnvFiles() error {
	if f := os.Getenv("ENV_FILE"); f != "" {
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}
