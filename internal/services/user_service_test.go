package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

func TestSignupCreatesClientWithCart(t *testing.T) {
	store := newTestStore(t)
	users := newTestUserService(store)
	ctx := context.Background()

	u := signup(t, users, "ana@example.com", "secret")
	assert.Equal(t, []models.Role{models.RoleClient}, u.Roles.Slice())
	assert.NotEqual(t, "secret", u.PasswordHash)

	cart, err := store.GetCartByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
}

func TestSignupValidation(t *testing.T) {
	users := newTestUserService(newTestStore(t))
	ctx := context.Background()
	signup(t, users, "ana@example.com", "secret")

	cases := []models.SignupRequest{
		{Email: "", Password: "x"},
		{Email: "not-an-email", Password: "x"},
		{Email: "bob@example.com", Password: ""},
		{Email: "ana@example.com", Password: "x"},
	}
	for _, req := range cases {
		_, err := users.Signup(ctx, &req)
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), "email %q", req.Email)
	}
}

func TestAuthenticate(t *testing.T) {
	users := newTestUserService(newTestStore(t))
	ctx := context.Background()
	signup(t, users, "ana@example.com", "secret")

	u, err := users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	_, err = users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = users.Authenticate(ctx, &models.LoginRequest{Email: "ghost@example.com", Password: "secret"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestUpdateUser(t *testing.T) {
	users := newTestUserService(newTestStore(t))
	ctx := context.Background()
	u := signup(t, users, "ana@example.com", "secret")
	signup(t, users, "bob@example.com", "secret")

	updated, err := users.Update(ctx, u.ID, &models.UserUpdateRequest{
		FirstName: "Ana",
		Email:     "ana.maria@example.com",
		Roles:     []models.Role{models.RoleClient, models.RoleSeller},
		Addresses: []models.Address{{Street: "Rua B", City: "Arcos", Main: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.FirstName)

	got, err := users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana.maria@example.com", got.Email)
	assert.True(t, got.Roles.Has(models.RoleSeller))
	require.Len(t, got.Addresses, 1)
	assert.Equal(t, "Arcos", got.Addresses[0].City)

	_, err = users.Update(ctx, u.ID, &models.UserUpdateRequest{Email: "bob@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = users.Update(ctx, 9999, &models.UserUpdateRequest{FirstName: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListUsers(t *testing.T) {
	users := newTestUserService(newTestStore(t))
	ctx := context.Background()

	list, err := users.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	signup(t, users, "ana@example.com", "secret")
	insertUser(t, users, "root@example.com", models.RoleAdmin)
	list, err = users.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].Roles.Has(models.RoleAdmin))
}

func TestDeleteUserCascades(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	carts := newTestCartService(f)

	_, err := carts.UpdateCart(ctx, models.ClaimedIdentity{Email: f.buyer.Email}, models.CartUpdateRequest{
		Items: []models.CartLineInput{
			{ProductID: f.p1.ID, Quantity: 1, Price: dec("10.00")},
			{ProductID: f.p2.ID, Quantity: 2, Price: dec("5.00")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, f.seller.ID))

	_, err = f.store.GetStoreByID(ctx, f.shop.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	exists, err := f.store.ProductExists(ctx, f.p1.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = f.store.GetCartByUserID(ctx, f.seller.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	buyerCart, err := carts.GetCart(ctx, models.ClaimedIdentity{Email: f.buyer.Email})
	require.NoError(t, err)
	assert.Empty(t, buyerCart.Items)
	assert.True(t, buyerCart.Total.IsZero())

	err = f.users.Delete(ctx, f.seller.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
