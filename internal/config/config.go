package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppEnv       = "development"
	defaultDBPath       = "./dev.db"
	defaultPort         = "8080"
	defaultWorkers      = 4
	defaultCurrency     = "MXN"
	defaultKafkaTopic   = "estructura.sync"
	defaultSyncInterval = 30 * time.Second
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv         string
	DBPath         string
	Port           string
	DefaultWorkers int
	Currency       string
	PricesFile     string
	LogLevel       string
	LogFile        string
	DemoProject    string

	SyncRemoteURL    string
	SyncKafkaBrokers []string
	SyncKafkaTopic   string
	SyncInterval     time.Duration
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		AppEnv:         os.Getenv("APP_ENV"),
		DBPath:         os.Getenv("DB_PATH"),
		Port:           os.Getenv("PORT"),
		DefaultWorkers: defaultWorkers,
		Currency:       os.Getenv("CURRENCY"),
		PricesFile:     os.Getenv("PRICES_FILE"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogFile:        os.Getenv("LOG_FILE"),
		DemoProject:    os.Getenv("SEED_DEMO_PROJECT"),
		SyncRemoteURL:  os.Getenv("SYNC_REMOTE_URL"),
		SyncKafkaTopic: os.Getenv("SYNC_KAFKA_TOPIC"),
		SyncInterval:   defaultSyncInterval,
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultAppEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.SyncKafkaTopic == "" {
		cfg.SyncKafkaTopic = defaultKafkaTopic
	}

	if raw := os.Getenv("DEFAULT_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Printf("warning: DEFAULT_WORKERS=%q is not a positive integer, using %d", raw, defaultWorkers)
		} else {
			cfg.DefaultWorkers = n
		}
	}

	if raw := os.Getenv("SYNC_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Printf("warning: SYNC_INTERVAL=%q is not a positive duration, using %s", raw, defaultSyncInterval)
		} else {
			cfg.SyncInterval = d
		}
	}

	for _, b := range strings.Split(os.Getenv("SYNC_KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.SyncKafkaBrokers = append(cfg.SyncKafkaBrokers, b)
		}
	}

	return cfg
}

// IsDev reports whether the app runs in a development environment, where
// the demo project is seeded at startup.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	}
	return false
}
