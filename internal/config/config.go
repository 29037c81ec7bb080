package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret    string
	AccessTokenIssuer    string
	AccessTokenAudience  string
	AccessTokenTTL       time.Duration
	RefreshTokenSecret   string
	RefreshTokenIssuer   string
	RefreshTokenAudience string
	RefreshTokenTTL      time.Duration

	BcryptCost           int
	UserCacheTTL         time.Duration
	SessionRetentionDays int
}

func LoadConfig() *Config {
	return &Config{
		Port: GetEnv("PORT", "8080"),

		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),

		RedisAddr:     GetEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvAsInt("REDIS_DB", 0),

		AccessTokenSecret:    GetEnv("ACCESS_TOKEN_SECRET", ""),
		AccessTokenIssuer:    GetEnv("ACCESS_TOKEN_ISSUER", "fitgrid-auth"),
		AccessTokenAudience:  GetEnv("ACCESS_TOKEN_AUDIENCE", "fitgrid-api"),
		AccessTokenTTL:       time.Duration(GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RefreshTokenSecret:   GetEnv("REFRESH_TOKEN_SECRET", ""),
		RefreshTokenIssuer:   GetEnv("REFRESH_TOKEN_ISSUER", "fitgrid-auth"),
		RefreshTokenAudience: GetEnv("REFRESH_TOKEN_AUDIENCE", "fitgrid-api"),
		RefreshTokenTTL:      time.Duration(GetEnvAsInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,

		BcryptCost:           GetEnvAsInt("BCRYPT_COST", 10),
		UserCacheTTL:         time.Duration(GetEnvAsInt("USER_CACHE_TTL_MINUTES", 15)) * time.Minute,
		SessionRetentionDays: GetEnvAsInt("SESSION_RETENTION_DAYS", 90),
	}
}

// Validate reports fatal misconfiguration. A missing signing secret must
// abort startup rather than fail per-request.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.AccessTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if c.RefreshTokenSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
