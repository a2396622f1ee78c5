package app

import (
	"time"

	"github.com/culturequiz/backend/internal/platform/envutil"
	"github.com/culturequiz/backend/internal/platform/logger"
)

type Config struct {
	ListenAddr     string
	AllowedOrigins string
	JWTSecretKey   string
	AccessTokenTTL time.Duration
	CookieSecure   bool
	// SQLitePath switches persistence to a local sqlite file when set;
	// empty means Postgres.
	SQLitePath string
}

func LoadConfig(log *logger.Logger) Config {
	ttlSeconds := envutil.GetEnvAsInt("ACCESS_TOKEN_TTL", 1800, log)
	return Config{
		ListenAddr:     envutil.GetEnv("LISTEN_ADDR", ":8080", log),
		AllowedOrigins: envutil.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log),
		JWTSecretKey:   envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL: time.Duration(ttlSeconds) * time.Second,
		CookieSecure:   envutil.GetEnv("COOKIE_SECURE", "true", log) == "true",
		SQLitePath:     envutil.GetEnv("SQLITE_PATH", "", log),
	}
}
