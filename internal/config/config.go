package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port     string
	DBDriver string
	DBUrl    string

	JWTSecret string
	JWTTTL    time.Duration

	ResetTokenWindow time.Duration
	ResetURI         string
	BcryptCost       int

	LogLevel  string
	LogFormat string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	RedisURL      string
	StoreCacheTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Println("JWT_SECRET not set, using default key")
	}

	return Config{
		Port:     getString("PORT", "8080"),
		DBDriver: strings.ToLower(getString("DB_DRIVER", "mysql")),
		DBUrl:    os.Getenv("DB_URL"),

		JWTSecret: jwtSecret,
		JWTTTL:    time.Duration(getInt("JWT_TTL_MINUTES", 24*60)) * time.Minute,

		ResetTokenWindow: time.Duration(getInt("RESET_TOKEN_MINUTES", 30)) * time.Minute,
		ResetURI:         getString("RESET_URI", "http://localhost:5173/recover-password/"),
		BcryptCost:       bcryptCost(getInt("BCRYPT_COST", bcrypt.DefaultCost)),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "console"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getString("MAIL_FROM", "no-reply@marketplace.local"),

		RedisURL:      os.Getenv("REDIS_URL"),
		StoreCacheTTL: time.Duration(getInt("STORE_CACHE_TTL_SECONDS", 60)) * time.Second,

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:    splitCSV(getString("CORS_ORIGINS", "*")),
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid value %q for %s, using %d", raw, key, fallback)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		log.Printf("invalid value %q for %s, using %g", raw, key, fallback)
		return fallback
	}
	return v
}

// bcryptCost clamps to the range accepted by bcrypt.GenerateFromPassword.
func bcryptCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
