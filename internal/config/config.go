// Package config provides application configuration loading from environment.
package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Store                 string
	DatabaseURL           string
	LogLevel              string
	LogFormat             string
	LogHashSalt           string
	AutoApprovalThreshold decimal.Decimal
	ChainCacheTTL         time.Duration
	OTelExporter          string
	OTelEndpoint          string
	OTelProtocol          string
	ServiceName           string
	AdminUserIDs          []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store:        strings.ToLower(envOr("STORE", StorePostgres)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		LogFormat:    envOr("LOG_FORMAT", "console"),
		LogHashSalt:  os.Getenv("LOG_HASH_SALT"),
		OTelExporter: strings.ToLower(envOr("OTEL_EXPORTER", "none")),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelProtocol: strings.ToLower(envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "http")),
		ServiceName:  envOr("SERVICE_NAME", "expense-approval"),
	}

	adminList := os.Getenv("ADMIN_USER_IDS")
	if adminList != "" {
		for id := range strings.SplitSeq(adminList, ",") {
			parsed, err := uuid.Parse(strings.TrimSpace(id))
			if err != nil {
				continue
			}
			cfg.AdminUserIDs = append(cfg.AdminUserIDs, parsed.String())
		}
	}

	var errs []string

	if raw := strings.TrimSpace(os.Getenv("AUTO_APPROVAL_THRESHOLD")); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("AUTO_APPROVAL_THRESHOLD %q is not a number", raw))
		} else {
			cfg.AutoApprovalThreshold = threshold
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHAIN_CACHE_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CHAIN_CACHE_TTL %q is not a duration", raw))
		} else {
			cfg.ChainCacheTTL = ttl
		}
	}

	// Validate required configuration.
	if err := cfg.validate(errs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present, adding to
// problems already found while parsing.
func (c *Config) validate(errs []string) error {
	if !slices.Contains([]string{StorePostgres, StoreMemory}, c.Store) {
		errs = append(errs, fmt.Sprintf("STORE must be %s or %s", StorePostgres, StoreMemory))
	}

	if c.Store == StorePostgres && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.AutoApprovalThreshold.IsNegative() {
		errs = append(errs, "AUTO_APPROVAL_THRESHOLD cannot be negative")
	}

	if c.ChainCacheTTL < 0 {
		errs = append(errs, "CHAIN_CACHE_TTL cannot be negative")
	}

	if !slices.Contains([]string{"none", "stdout", "otlp"}, c.OTelExporter) {
		errs = append(errs, "OTEL_EXPORTER must be none, stdout or otlp")
	}

	if !slices.Contains([]string{"http", "grpc"}, c.OTelProtocol) {
		errs = append(errs, "OTEL_EXPORTER_OTLP_PROTOCOL must be http or grpc")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// UsesMemoryStore reports whether workflows are kept in process memory.
func (c *Config) UsesMemoryStore() bool {
	return c.Store == StoreMemory
}

// IsAdmin checks if a user id, in any UUID spelling, is in the configured
// admin list.
func (c *Config) IsAdmin(userID string) bool {
	parsed, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return false
	}
	return slices.Contains(c.AdminUserIDs, parsed.String())
}

// IsWorkspaceAdmin lets the configured admins cancel workflows in any
// workspace.
func (c *Config) IsWorkspaceAdmin(_ context.Context, _, userID string) (bool, error) {
	return c.IsAdmin(userID), nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
