package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Daily         DailyConfig
	Transcription TranscriptionConfig
	Realtime      RealtimeConfig
	Log           LogConfig
}

type ServerConfig struct {
	Port                 string
	Mode                 string // gin mode: debug, release, test
	ExposeUpstreamErrors bool
	AuthRateRPS          float64
	AuthRateBurst        int

	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies []string
}

type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type DailyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type TranscriptionConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	UploadDir      string
	MaxUploadBytes int64
}

// RealtimeConfig selects the chat fan-out backplane.
type RealtimeConfig struct {
	Backplane string // local, redis or postgres
	RedisURL  string
	Channel   string
}

type LogConfig struct {
	File       string
	AccessFile string
	Level      string
	Stdout     bool
}

// required lists the variables the process refuses to start without.
var required = []string{"DATABASE_URL", "JWT_SECRET", "DAILY_API_KEY", "OPENAI_API_KEY"}

// Load reads .env (if present) and the process environment.
// Every missing required variable is reported in a single error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}

	p := &parser{}
	providerTimeout := p.duration("PROVIDER_TIMEOUT", 30*time.Second)
	cfg := &Config{
		Server: ServerConfig{
			Port:                 getEnv("PORT", "8080"),
			Mode:                 getEnv("GIN_MODE", "debug"),
			ExposeUpstreamErrors: p.bool("EXPOSE_UPSTREAM_ERRORS", false),
			AuthRateRPS:          p.float("AUTH_RATE_RPS", 5),
			AuthRateBurst:        p.int("AUTH_RATE_BURST", 10),
			TrustedProxies:       splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Database: DatabaseConfig{
			URL:         os.Getenv("DATABASE_URL"),
			AutoMigrate: p.bool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  p.duration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Daily: DailyConfig{
			APIKey:  os.Getenv("DAILY_API_KEY"),
			BaseURL: strings.TrimRight(getEnv("DAILY_API_URL", "https://api.daily.co/v1"), "/"),
			Timeout: providerTimeout,
		},
		Transcription: TranscriptionConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        strings.TrimRight(getEnv("OPENAI_API_URL", "https://api.openai.com/v1"), "/"),
			Model:          getEnv("TRANSCRIPTION_MODEL", "gpt-4o-transcribe"),
			Timeout:        providerTimeout,
			UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: int64(p.int("MAX_UPLOAD_MB", 25)) << 20,
		},
		Realtime: RealtimeConfig{
			Backplane: strings.ToLower(getEnv("REALTIME_BACKPLANE", "local")),
			RedisURL:  os.Getenv("REDIS_URL"),
			Channel:   getEnv("REALTIME_CHANNEL", "consultation_chat"),
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", "./logs/app.log"),
			AccessFile: getEnv("ACCESS_LOG_FILE", "./logs/access.log"),
			Level:      getEnv("LOG_LEVEL", "info"),
			Stdout:     p.bool("LOG_STDOUT", true),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	switch cfg.Realtime.Backplane {
	case "local", "postgres":
	case "redis":
		if cfg.Realtime.RedisURL == "" {
			return nil, fmt.Errorf("config: REDIS_URL is required when REALTIME_BACKPLANE=redis")
		}
	default:
		return nil, fmt.Errorf("config: unknown REALTIME_BACKPLANE %q", cfg.Realtime.Backplane)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("config: AUTH_TOKEN_TTL must be positive")
	}
	if cfg.Server.AuthRateRPS <= 0 || cfg.Server.AuthRateBurst <= 0 {
		return nil, fmt.Errorf("config: AUTH_RATE_RPS and AUTH_RATE_BURST must be positive")
	}
	if cfg.Transcription.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("config: MAX_UPLOAD_MB must be positive")
	}
	if providerTimeout <= 0 {
		return nil, fmt.Errorf("config: PROVIDER_TIMEOUT must be positive")
	}
	for _, proxy := range cfg.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return nil, fmt.Errorf("config: invalid TRUSTED_PROXIES entry %q", proxy)
			}
		}
	}
	return cfg, nil
}

// String returns a representation of the config with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %s, Mode: %s, DB: ***, JWT: ***, Daily: %s, Transcription: %s (%s), Backplane: %s}",
		c.Server.Port, c.Server.Mode, c.Daily.BaseURL, c.Transcription.BaseURL, c.Transcription.Model, c.Realtime.Backplane)
}

// splitList parses a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return defaultValue
}

// parser keeps the first malformed value it sees.
type parser struct{ err error }

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid value %q for %s: %w", value, key, err)
	}
}

func (p *parser) int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
