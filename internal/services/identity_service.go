package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type StoreLookup interface {
	GetStoreByOwnerEmail(ctx context.Context, email string) (*models.Store, error)
}

type CartLookup interface {
	GetCartByUserEmail(ctx context.Context, email string) (*models.Cart, error)
}

// IdentityResolver maps a claimed identity onto the persisted aggregates it
// owns. It is stateless apart from its lookups.
type IdentityResolver struct {
	users  UserLookup
	stores StoreLookup
	carts  CartLookup
	logger zerolog.Logger
}

func NewIdentityResolver(users UserLookup, stores StoreLookup, carts CartLookup, logger zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, stores: stores, carts: carts, logger: logger}
}

func (r *IdentityResolver) ResolveUser(ctx context.Context, claimed models.ClaimedIdentity) (*models.User, error) {
	user, err := r.users.GetUserByEmail(ctx, claimed.Email)
	if err != nil {
		return nil, notFoundOr(err, "User not found", "failed to resolve user")
	}
	return user, nil
}

func (r *IdentityResolver) ResolveStore(ctx context.Context, claimed models.ClaimedIdentity) (*models.Store, error) {
	store, err := r.stores.GetStoreByOwnerEmail(ctx, claimed.Email)
	if err != nil {
		return nil, notFoundOr(err, "Store not found", "failed to resolve store")
	}
	return store, nil
}

// ResolveCart returns the caller's cart with every line loaded.
func (r *IdentityResolver) ResolveCart(ctx context.Context, claimed models.ClaimedIdentity) (*models.Cart, error) {
	cart, err := r.carts.GetCartByUserEmail(ctx, claimed.Email)
	if err != nil {
		return nil, notFoundOr(err, "Cart not found", "failed to resolve cart")
	}
	return cart, nil
}

// Identify resolves the claimed principal and projects it to an Identity.
func (r *IdentityResolver) Identify(ctx context.Context, claimed models.ClaimedIdentity) (models.Identity, error) {
	user, err := r.ResolveUser(ctx, claimed)
	if err != nil {
		return models.Identity{}, err
	}
	return IdentityOf(user), nil
}

func IdentityOf(user *models.User) models.Identity {
	roles := models.NewRoleSet(user.Roles.Slice()...)
	return models.Identity{UserID: user.ID, Email: user.Email, Roles: roles}
}

// notFoundOr turns repository.ErrNotFound into apperr NotFound and wraps
// anything else as an infrastructure failure.
func notFoundOr(err error, notFoundMsg, wrapMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("%s", notFoundMsg)
	}
	return fmt.Errorf("%s: %w", wrapMsg, err)
}
