package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MetricsPort string
	Env         string
	LogLevel    string
	DatabaseURL string

	JWTSecret       string
	JWTAccessExpiry time.Duration

	Teams       TeamsConfig
	Provisioner ProvisionerConfig
	Redis       RedisConfig

	IdentityCacheTTL time.Duration
}

// TeamsConfig carries the limits and policy switches of team formation.
type TeamsConfig struct {
	MaxNameLength    int
	MaxTeamSize      int
	InviteDuration   time.Duration
	TeamsPerCategory int
	CategoryBaseName string
	AllowSelfInvite  bool
	OwnerOnly        bool
	RetryAttempts    int
	SweepInterval    time.Duration
}

type ProvisionerConfig struct {
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	accessExpiry, err := time.ParseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		Env:         env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:       getEnvOrPanic("JWT_SECRET"),
		JWTAccessExpiry: accessExpiry,

		Teams: TeamsConfig{
			MaxNameLength:    getEnvInt("TEAM_MAX_NAME_LENGTH", 32),
			MaxTeamSize:      getEnvInt("TEAM_MAX_SIZE", 4),
			InviteDuration:   getEnvDuration("TEAM_INVITE_DURATION", 15*time.Minute),
			TeamsPerCategory: getEnvInt("TEAM_PER_CATEGORY", 25),
			CategoryBaseName: getEnv("TEAM_CATEGORY_BASE_NAME", "Teams"),
			AllowSelfInvite:  getEnvBool("TEAM_ALLOW_SELF_INVITE", env != "production"),
			OwnerOnly:        getEnvBool("TEAM_OWNER_ONLY", true),
			RetryAttempts:    clamp(getEnvInt("TEAM_RETRY_ATTEMPTS", 4), 3, 5),
			SweepInterval:    getEnvDuration("TEAM_SWEEP_INTERVAL", time.Minute),
		},

		Provisioner: ProvisionerConfig{
			URL:          getEnv("PROVISIONER_URL", ""),
			TokenURL:     getEnv("PROVISIONER_TOKEN_URL", ""),
			ClientID:     getEnv("PROVISIONER_CLIENT_ID", ""),
			ClientSecret: getEnv("PROVISIONER_CLIENT_SECRET", ""),
			Timeout:      getEnvDuration("PROVISIONER_TIMEOUT", 5*time.Second),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		IdentityCacheTTL: getEnvDuration("IDENTITY_CACHE_TTL", 5*time.Minute),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
