package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace-api/internal/models"
)

func (s *Store) CreateResetToken(ctx context.Context, t *models.ResetToken) error {
	id, err := s.insert(ctx,
		"INSERT INTO password_reset_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		t.Token, t.Email, t.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	t.ID = id
	return nil
}

// FindResetTokens returns every record for token, expired and consumed ones
// included; the caller decides usability against its own clock.
func (s *Store) FindResetTokens(ctx context.Context, token string) ([]models.ResetToken, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, token, email, expires_at, consumed_at FROM password_reset_tokens WHERE token = ? ORDER BY id",
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reset tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.ResetToken
	for rows.Next() {
		var t models.ResetToken
		var consumed sql.NullTime
		if err := rows.Scan(&t.ID, &t.Token, &t.Email, &t.ExpiresAt, &consumed); err != nil {
			return nil, fmt.Errorf("error scanning reset token: %w", err)
		}
		if consumed.Valid {
			at := consumed.Time
			t.ConsumedAt = &at
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// ConsumeResetToken marks the token used. A token already consumed by a
// concurrent request yields ErrNotFound.
func (s *Store) ConsumeResetToken(ctx context.Context, id int64, at time.Time) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE password_reset_tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL",
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	return requireAffected(result)
}
