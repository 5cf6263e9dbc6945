package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
)

// CredentialVerifier checks bearer tokens and names the principal they carry.
// It never touches persistence.
type CredentialVerifier struct {
	secretKey []byte
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// Claims carries the principal's email under "username".
type Claims struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

func NewCredentialVerifier(secret string, ttl time.Duration, logger zerolog.Logger) *CredentialVerifier {
	if secret == "" {
		secret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	return &CredentialVerifier{
		secretKey: []byte(secret),
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthenticated("Authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.Unauthenticated("Invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperr.Unauthenticated("Authorization header required")
	}
	return token, nil
}

func (v *CredentialVerifier) Verify(raw string) (models.ClaimedIdentity, error) {
	if strings.TrimSpace(raw) == "" {
		return models.ClaimedIdentity{}, apperr.Unauthenticated("No credential presented")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		v.logger.Debug().Err(err).Msg("Credential rejected")
		return models.ClaimedIdentity{}, apperr.Wrap(apperr.KindUnauthenticated, err, "Invalid or expired token")
	}
	if !token.Valid {
		return models.ClaimedIdentity{}, apperr.Unauthenticated("Invalid or expired token")
	}

	email := strings.TrimSpace(claims.Username)
	if email == "" {
		return models.ClaimedIdentity{}, apperr.MalformedClaims("Token does not name a principal")
	}
	return models.ClaimedIdentity{Email: email}, nil
}

// Issue signs a token for user valid for the configured TTL.
func (v *CredentialVerifier) Issue(user *models.User) (string, error) {
	now := v.now()
	claims := &Claims{
		Username:    user.Email,
		Authorities: user.Roles.Authorities(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secretKey)
	if err != nil {
		v.logger.Error().Err(err).Str("email", user.Email).Msg("Error generating token")
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
