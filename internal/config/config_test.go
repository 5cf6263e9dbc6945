package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "RESET_TOKEN_MINUTES", "BCRYPT_COST", "CORS_ORIGINS", "JWT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenWindow)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("RESET_TOKEN_MINUTES", "15")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.ResetTokenWindow)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RESET_TOKEN_MINUTES", "soon")
	t.Setenv("BCRYPT_COST", "99")

	cfg := LoadConfig()

	assert.Equal(t, 30*time.Minute, cfg.ResetTokenWindow)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
}
