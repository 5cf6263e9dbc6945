package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

const testResetURI = "http://localhost:5173/recover-password/"

type resetFixture struct {
	store    *repository.Store
	users    *UserService
	notifier *recordingNotifier
	svc      *PasswordResetService
	clock    time.Time
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	store := newTestStore(t)
	f := &resetFixture{
		store:    store,
		users:    newTestUserService(store),
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewPasswordResetService(store, f.notifier, newTestMetrics(), ResetConfig{
		Window:     30 * time.Minute,
		ResetURI:   testResetURI,
		BcryptCost: bcrypt.MinCost,
	}, zerolog.Nop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *resetFixture) request(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.RequestReset(context.Background(), email))
	f.svc.Wait()
	return f.notifier.lastToken(t, testResetURI)
}

func TestResetRoundTrip(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	signup(t, f.users, "ana@example.com", "old-pass")

	token := f.request(t, "ana@example.com")
	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ana@example.com", msgs[0].To)
	assert.Contains(t, msgs[0].Body, testResetURI+token)

	require.NoError(t, f.svc.CompleteReset(ctx, token, "new-pass"))

	_, err := f.users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "old-pass"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = f.users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "new-pass"})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.ResetCompleted))
}

func TestRequestResetStoresExpiry(t *testing.T) {
	f := newResetFixture(t)
	signup(t, f.users, "ana@example.com", "old-pass")

	token := f.request(t, "ana@example.com")
	records, err := f.store.FindResetTokens(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ana@example.com", records[0].Email)
	assert.True(t, f.clock.Add(30*time.Minute).Equal(records[0].ExpiresAt))
	assert.Len(t, token, 36)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	f := newResetFixture(t)

	err := f.svc.RequestReset(context.Background(), "ghost@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	f.svc.Wait()
	assert.Empty(t, f.notifier.messages())
}

func TestRequestResetSurvivesNotifierFailure(t *testing.T) {
	f := newResetFixture(t)
	signup(t, f.users, "ana@example.com", "old-pass")
	f.notifier.err = errors.New("smtp down")

	require.NoError(t, f.svc.RequestReset(context.Background(), "ana@example.com"))
	f.svc.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.NotificationFailures))
}

func TestCompleteResetExpiryBoundary(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	signup(t, f.users, "ana@example.com", "old-pass")
	issued := f.clock
	token := f.request(t, "ana@example.com")

	f.clock = issued.Add(30 * time.Minute)
	err := f.svc.CompleteReset(ctx, token, "new-pass")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "now == expiresAt must be expired")

	f.clock = issued.Add(30*time.Minute - time.Nanosecond)
	assert.NoError(t, f.svc.CompleteReset(ctx, token, "new-pass"))
}

func TestCompleteResetRejections(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	signup(t, f.users, "ana@example.com", "old-pass")
	token := f.request(t, "ana@example.com")

	err := f.svc.CompleteReset(ctx, token, "  ")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	err = f.svc.CompleteReset(ctx, "not-a-token", "new-pass")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, f.svc.CompleteReset(ctx, token, "new-pass"))
	err = f.svc.CompleteReset(ctx, token, "third-pass")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "tokens are single use")

	_, err = f.users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "new-pass"})
	assert.NoError(t, err)
}

func TestCompleteResetUserGone(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	u := signup(t, f.users, "ana@example.com", "old-pass")
	token := f.request(t, "ana@example.com")

	require.NoError(t, f.users.Delete(ctx, u.ID))
	err := f.svc.CompleteReset(ctx, token, "new-pass")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	records, err := f.store.FindResetTokens(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, records[0].ConsumedAt, "failed completion leaves the token untouched")
}

func TestOutstandingTokensAreIndependent(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	signup(t, f.users, "ana@example.com", "old-pass")

	first := f.request(t, "ana@example.com")
	second := f.request(t, "ana@example.com")
	require.NotEqual(t, first, second)

	require.NoError(t, f.svc.CompleteReset(ctx, second, "pass-two"))
	require.NoError(t, f.svc.CompleteReset(ctx, first, "pass-one"))

	_, err := f.users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "pass-one"})
	assert.NoError(t, err)
}
