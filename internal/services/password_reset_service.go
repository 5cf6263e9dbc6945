package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/models"
	"marketplace-api/internal/notify"
	"marketplace-api/internal/repository"
)

const notifyTimeout = 30 * time.Second

type ResetConfig struct {
	Window     time.Duration
	ResetURI   string
	BcryptCost int
}

// PasswordResetService issues single-use reset tokens and completes resets.
// A token moves from issued to consumed on success, or lapses at ExpiresAt.
type PasswordResetService struct {
	store    *repository.Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	cfg      ResetConfig
	logger   zerolog.Logger
	now      func() time.Time
	pending  sync.WaitGroup
}

func NewPasswordResetService(store *repository.Store, notifier notify.Notifier, m *metrics.Metrics, cfg ResetConfig, logger zerolog.Logger) *PasswordResetService {
	return &PasswordResetService{
		store:    store,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestReset stores a fresh token for the user registered under email and
// mails a reset link. Delivery runs in the background; its failure is logged
// and never reaches the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return notFoundOr(err, "User not found", "failed to look up user")
	}

	token := &models.ResetToken{
		Token:     uuid.NewString(),
		Email:     user.Email,
		ExpiresAt: s.now().Add(s.cfg.Window),
	}
	if err := s.store.CreateResetToken(ctx, token); err != nil {
		s.logger.Error().Err(err).Str("email", user.Email).Msg("Error storing reset token")
		return err
	}
	s.metrics.ResetRequests.Inc()

	msg := notify.Email{
		To:      user.Email,
		Subject: "Password recovery",
		Body:    "Use the link below to choose a new password:\n\n" + s.cfg.ResetURI + token.Token,
	}
	s.dispatch(ctx, msg)

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("Password reset requested")
	return nil
}

func (s *PasswordResetService) dispatch(ctx context.Context, msg notify.Email) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.Send(sendCtx, msg); err != nil {
			s.metrics.NotificationFailures.Inc()
			s.logger.Error().Err(err).Str("email", msg.To).Msg("Failed to deliver reset notification")
		}
	}()
}

// Wait blocks until every background notification has finished.
func (s *PasswordResetService) Wait() {
	s.pending.Wait()
}

// CompleteReset sets a new password for the owner of token and consumes it.
// Unknown, expired and already used tokens are indistinguishable to the
// caller: all yield NotFound.
func (s *PasswordResetService) CompleteReset(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperr.InvalidArgument("New password is required")
	}

	now := s.now()
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		candidates, err := tx.FindResetTokens(ctx, token)
		if err != nil {
			return err
		}

		var usable *models.ResetToken
		for i := range candidates {
			if candidates[i].UsableAt(now) {
				usable = &candidates[i]
				break
			}
		}
		if usable == nil {
			return apperr.NotFound("Token not found")
		}

		user, err := tx.GetUserByEmail(ctx, usable.Email)
		if err != nil {
			return notFoundOr(err, "User not found", "failed to look up user")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := tx.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
			return notFoundOr(err, "User not found", "failed to update password")
		}

		if err := tx.ConsumeResetToken(ctx, usable.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("Token not found")
			}
			return err
		}

		s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("Password reset completed")
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Msg("Error completing password reset")
		}
		return err
	}

	s.metrics.ResetCompleted.Inc()
	return nil
}
