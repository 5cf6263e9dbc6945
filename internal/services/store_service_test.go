package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
)

type memoryStoreCache struct {
	stores      []models.Store
	hit         bool
	sets        int
	invalidated int
}

func (c *memoryStoreCache) GetTopStores(context.Context) ([]models.Store, bool, error) {
	return c.stores, c.hit, nil
}

func (c *memoryStoreCache) SetTopStores(_ context.Context, stores []models.Store) error {
	c.stores, c.hit = stores, true
	c.sets++
	return nil
}

func (c *memoryStoreCache) Invalidate(context.Context) error {
	c.stores, c.hit = nil, false
	c.invalidated++
	return nil
}

func TestTopStoresUsesCache(t *testing.T) {
	f := newMarketFixture(t)
	cache := &memoryStoreCache{}
	svc := NewStoreService(f.store, cache, newTestMetrics(), zerolog.Nop())
	ctx := context.Background()

	first, err := svc.TopStores(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "seller@example.com", first[0].OwnerEmail)

	second, err := svc.TopStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.StoreCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.StoreCacheLookups.WithLabelValues("miss")))
}

func TestCreateStoreRules(t *testing.T) {
	f := newMarketFixture(t)
	cache := &memoryStoreCache{}
	svc := NewStoreService(f.store, cache, newTestMetrics(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CreateStore(ctx, &models.StoreCreateRequest{OwnerID: f.buyer.ID, Name: "Nope"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), "CLIENT cannot own a store")

	_, err = svc.CreateStore(ctx, &models.StoreCreateRequest{OwnerID: f.seller.ID, Name: "Second"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), "one store per owner")

	_, err = svc.CreateStore(ctx, &models.StoreCreateRequest{OwnerID: 9999, Name: "Ghost"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	admin := insertUser(t, f.users, "root@example.com", models.RoleAdmin)
	missing := int64(777)
	_, err = svc.CreateStore(ctx, &models.StoreCreateRequest{OwnerID: admin.ID, Name: "Admin shop", MainCategoryID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	created, err := svc.CreateStore(ctx, &models.StoreCreateRequest{OwnerID: admin.ID, Name: "Admin shop", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", created.OwnerEmail)
	assert.Equal(t, 1, cache.invalidated)

	mine, err := svc.MyStore(ctx, models.ClaimedIdentity{Email: "root@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, mine.ID)
}

func TestDeleteStoreCascades(t *testing.T) {
	f := newMarketFixture(t)
	cache := &memoryStoreCache{}
	svc := NewStoreService(f.store, cache, newTestMetrics(), zerolog.Nop())
	carts := newTestCartService(f)
	ctx := context.Background()
	buyer := models.ClaimedIdentity{Email: f.buyer.Email}

	_, err := carts.UpdateCart(ctx, buyer, models.CartUpdateRequest{
		Items: []models.CartLineInput{{ProductID: f.p1.ID, Quantity: 2, Price: dec("10.00")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStore(ctx, f.shop.ID))
	assert.Equal(t, 1, cache.invalidated)

	products, err := f.store.ListProducts(ctx, models.ProductFilter{StoreID: f.shop.ID}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, products)

	cart, err := carts.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())

	err = svc.DeleteStore(ctx, f.shop.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOwnerEmailChangeInvalidatesStoreCache(t *testing.T) {
	f := newMarketFixture(t)
	cache := &memoryStoreCache{}
	stores := NewStoreService(f.store, cache, newTestMetrics(), zerolog.Nop())
	users := NewUserService(f.store, cache, bcrypt.MinCost, zerolog.Nop())
	ctx := context.Background()

	_, err := stores.TopStores(ctx)
	require.NoError(t, err)
	require.True(t, cache.hit)

	_, err = users.Update(ctx, f.seller.ID, &models.UserUpdateRequest{FirstName: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.invalidated, "unchanged email keeps the listing")

	_, err = users.Update(ctx, f.seller.ID, &models.UserUpdateRequest{Email: "shop.owner@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	listed, err := stores.TopStores(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "shop.owner@example.com", listed[0].OwnerEmail)
}
