package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"marketplace-api/internal/db"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/models"
	"marketplace-api/internal/notify"
	"marketplace-api/internal/repository"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(conn, db.DriverSQLite))
	store := repository.NewStore(conn)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestUserService(store *repository.Store) *UserService {
	return NewUserService(store, repository.NoopStoreCache{}, bcrypt.MinCost, zerolog.Nop())
}

func signup(t *testing.T, users *UserService, email, password string) *models.User {
	t.Helper()
	u, err := users.Signup(context.Background(), &models.SignupRequest{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return u
}

func insertUser(t *testing.T, users *UserService, email string, roles ...models.Role) *models.User {
	t.Helper()
	u, err := users.Insert(context.Background(), &models.UserInsertRequest{
		SignupRequest: models.SignupRequest{FirstName: "Test", Email: email, Password: "secret"},
		Roles:         roles,
	})
	require.NoError(t, err)
	return u
}

// marketFixture is a seller with a store holding two products, plus a buyer.
type marketFixture struct {
	store  *repository.Store
	users  *UserService
	seller *models.User
	shop   *models.Store
	buyer  *models.User
	p1     *models.Product
	p2     *models.Product
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)
	users := newTestUserService(store)

	f := &marketFixture{store: store, users: users}
	f.seller = insertUser(t, users, "seller@example.com", models.RoleSeller)
	f.shop = &models.Store{OwnerID: f.seller.ID, Name: "Shop", Rating: 4.2}
	require.NoError(t, store.CreateStore(ctx, f.shop))

	f.p1 = &models.Product{StoreID: f.shop.ID, Name: "Mug", Price: dec("10.00"), CategoryIDs: []int64{}}
	f.p2 = &models.Product{StoreID: f.shop.ID, Name: "Tea", Price: dec("5.00"), CategoryIDs: []int64{}}
	require.NoError(t, store.CreateProduct(ctx, f.p1))
	require.NoError(t, store.CreateProduct(ctx, f.p2))

	f.buyer = signup(t, users, "buyer@example.com", "secret")
	return f
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []notify.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Email(nil), n.sent...)
}

// lastToken extracts the token from the most recent reset link.
func (n *recordingNotifier) lastToken(t *testing.T, uri string) string {
	t.Helper()
	msgs := n.messages()
	require.NotEmpty(t, msgs)
	body := msgs[len(msgs)-1].Body
	idx := strings.LastIndex(body, uri)
	require.GreaterOrEqual(t, idx, 0)
	return body[idx+len(uri):]
}
