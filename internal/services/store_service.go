package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

const topStoresLimit = 10

type StoreService struct {
	store   *repository.Store
	cache   repository.StoreListCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewStoreService(store *repository.Store, cache repository.StoreListCache, m *metrics.Metrics, logger zerolog.Logger) *StoreService {
	return &StoreService{store: store, cache: cache, metrics: m, logger: logger}
}

// TopStores returns the best rated stores, served from the cache when warm.
// Cache errors degrade to a database read.
func (s *StoreService) TopStores(ctx context.Context) ([]models.Store, error) {
	stores, hit, err := s.cache.GetTopStores(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Store cache read failed")
	}
	s.metrics.RecordCacheLookup(hit)
	if hit {
		return stores, nil
	}

	stores, err = s.store.ListTopStores(ctx, topStoresLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing stores")
		return nil, err
	}
	if err := s.cache.SetTopStores(ctx, stores); err != nil {
		s.logger.Warn().Err(err).Msg("Store cache write failed")
	}
	return stores, nil
}

func (s *StoreService) MyStore(ctx context.Context, claimed models.ClaimedIdentity) (*models.Store, error) {
	return NewIdentityResolver(s.store, s.store, s.store, s.logger).ResolveStore(ctx, claimed)
}

// CreateStore opens a store for a user holding SELLER or ADMIN. A user owns
// at most one store.
func (s *StoreService) CreateStore(ctx context.Context, req *models.StoreCreateRequest) (*models.Store, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.InvalidArgument("Store name is required")
	}
	if req.Rating < 0 || req.DeliveryTime < 0 {
		return nil, apperr.InvalidArgument("Rating and delivery time must not be negative")
	}

	store := &models.Store{
		OwnerID:        req.OwnerID,
		Name:           strings.TrimSpace(req.Name),
		Rating:         req.Rating,
		DeliveryTime:   req.DeliveryTime,
		MainCategoryID: req.MainCategoryID,
	}

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		owner, err := tx.GetUserByID(ctx, req.OwnerID)
		if err != nil {
			return notFoundOr(err, "Owner not found", "failed to fetch owner")
		}
		if !Authorize(owner.Roles, models.NewRoleSet(models.RoleSeller, models.RoleAdmin)) {
			return apperr.InvalidArgument("Store owner must hold SELLER or ADMIN")
		}
		if _, err := tx.GetStoreByOwnerID(ctx, owner.ID); err == nil {
			return apperr.InvalidArgument("User already owns a store")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if req.MainCategoryID != nil {
			ok, err := tx.CategoriesExist(ctx, []int64{*req.MainCategoryID})
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("Category %d not found", *req.MainCategoryID)
			}
		}

		if err := tx.CreateStore(ctx, store); err != nil {
			return err
		}
		store.OwnerEmail = owner.Email
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Int64("owner_id", req.OwnerID).Msg("Error creating store")
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info().Int64("store_id", store.ID).Int64("owner_id", store.OwnerID).Msg("Store created")
	return store, nil
}

// DeleteStore removes the store after deleting each of its products.
func (s *StoreService) DeleteStore(ctx context.Context, id int64) error {
	var removed int
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.GetStoreByID(ctx, id); err != nil {
			return notFoundOr(err, "Store not found", "failed to fetch store")
		}
		var err error
		if removed, err = tx.DeleteProductsByStore(ctx, id); err != nil {
			return err
		}
		return tx.DeleteStore(ctx, id)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Int64("store_id", id).Msg("Error deleting store")
		}
		return err
	}

	s.invalidate(ctx)
	s.logger.Info().Int64("store_id", id).Int("products_removed", removed).Msg("Store deleted")
	return nil
}

func (s *StoreService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate store cache")
	}
}
