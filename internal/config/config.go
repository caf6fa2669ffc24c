package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultAddr      = ":4000"
	defaultIssuer    = "ai-assistant"
	defaultAccessTTL = 15 * time.Minute
	// Refresh credentials are loaded for forward compatibility; no endpoint
	// exercises them yet.
	defaultRefreshTTL = 7 * 24 * time.Hour

	defaultMaxBodyBytes = int64(1 << 20)
	defaultRateBurst    = 20
	defaultRatePerSec   = 10
)

// Config is the immutable process configuration, built once at startup and
// passed explicitly into constructors.
type Config struct {
	Addr     string
	GRPCAddr string

	PGDSN string

	JWTSecret        string
	JWTRefreshSecret string
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	CORSOrigins []string

	AIServiceURL  string
	GovernanceURL string

	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   int
}

// Load reads configuration from AIGATE_* environment variables and validates
// the values the process cannot run without.
func Load() (Config, error) {
	cfg := Config{
		Addr:             envOr("AIGATE_ADDR", defaultAddr),
		GRPCAddr:         os.Getenv("AIGATE_GRPC_ADDR"),
		PGDSN:            os.Getenv("AIGATE_PG_DSN"),
		JWTSecret:        strings.TrimSpace(os.Getenv("AIGATE_JWT_SECRET")),
		JWTRefreshSecret: strings.TrimSpace(os.Getenv("AIGATE_JWT_REFRESH_SECRET")),
		Issuer:           envOr("AIGATE_JWT_ISSUER", defaultIssuer),
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		CORSOrigins:      splitList(envOr("AIGATE_CORS_ORIGINS", "http://localhost:3000")),
		AIServiceURL:     envOr("AIGATE_AI_SERVICE_URL", "http://localhost:8000"),
		GovernanceURL:    envOr("AIGATE_GOVERNANCE_SERVICE_URL", "http://localhost:8080"),
		MaxBodyBytes:     defaultMaxBodyBytes,
		RateBurst:        defaultRateBurst,
		RatePerSec:       defaultRatePerSec,
	}

	if raw := os.Getenv("AIGATE_ACCESS_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("config: invalid AIGATE_ACCESS_TTL %q", raw)
		}
		cfg.AccessTTL = ttl
	}
	if raw := os.Getenv("AIGATE_REFRESH_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("config: invalid AIGATE_REFRESH_TTL %q", raw)
		}
		cfg.RefreshTTL = ttl
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: AIGATE_JWT_SECRET is required")
	}
	if cfg.PGDSN == "" {
		return Config{}, errors.New("config: AIGATE_PG_DSN is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
