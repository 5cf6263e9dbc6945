package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

type ProductService struct {
	store  *repository.Store
	logger zerolog.Logger
}

func NewProductService(store *repository.Store, logger zerolog.Logger) *ProductService {
	return &ProductService{store: store, logger: logger}
}

func (s *ProductService) List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	products, err := s.store.ListProducts(ctx, filter, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing products")
		return nil, err
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Product not found", "failed to fetch product")
	}
	return p, nil
}

// ListMine lists the products of the caller's store.
func (s *ProductService) ListMine(ctx context.Context, identity models.Identity, limit, offset int) ([]*models.Product, error) {
	store, err := s.callerStore(ctx, s.store, identity)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, models.ProductFilter{StoreID: store.ID}, limit, offset)
}

// Create adds a product to the caller's store.
func (s *ProductService) Create(ctx context.Context, identity models.Identity, req *models.ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		CategoryIDs: categoryIDs(req.CategoryIDs),
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		store, err := s.callerStore(ctx, tx, identity)
		if err != nil {
			return err
		}
		if err := requireCategories(ctx, tx, product.CategoryIDs); err != nil {
			return err
		}
		product.StoreID = store.ID
		return tx.CreateProduct(ctx, product)
	})
	if err != nil {
		s.logError(err, identity, "Error creating product")
		return nil, err
	}

	s.logger.Info().Int64("product_id", product.ID).Int64("store_id", product.StoreID).Msg("Product created")
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, identity models.Identity, id int64, req *models.ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		if product, err = s.ownedProduct(ctx, tx, identity, id); err != nil {
			return err
		}
		product.Name = strings.TrimSpace(req.Name)
		product.Description = req.Description
		product.Price = req.Price
		product.ImageURL = req.ImageURL
		product.CategoryIDs = categoryIDs(req.CategoryIDs)
		if err := requireCategories(ctx, tx, product.CategoryIDs); err != nil {
			return err
		}
		return tx.UpdateProduct(ctx, product)
	})
	if err != nil {
		s.logError(err, identity, "Error updating product")
		return nil, err
	}

	s.logger.Info().Int64("product_id", id).Msg("Product updated")
	return product, nil
}

// Delete removes the product and every cart line that references it.
func (s *ProductService) Delete(ctx context.Context, identity models.Identity, id int64) error {
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := s.ownedProduct(ctx, tx, identity, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		s.logError(err, identity, "Error deleting product")
		return err
	}

	s.logger.Info().Int64("product_id", id).Msg("Product deleted")
	return nil
}

func (s *ProductService) callerStore(ctx context.Context, q *repository.Store, identity models.Identity) (*models.Store, error) {
	return NewIdentityResolver(q, q, q, s.logger).ResolveStore(ctx, models.ClaimedIdentity{Email: identity.Email})
}

// ownedProduct loads product id, requiring it to belong to the caller's store
// unless the caller is ADMIN.
func (s *ProductService) ownedProduct(ctx context.Context, tx *repository.Store, identity models.Identity, id int64) (*models.Product, error) {
	product, err := tx.GetProduct(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Product not found", "failed to fetch product")
	}
	if identity.Roles.Has(models.RoleAdmin) {
		return product, nil
	}

	store, err := s.callerStore(ctx, tx, identity)
	if err != nil {
		return nil, err
	}
	if store.ID != product.StoreID {
		return nil, apperr.Forbidden("Product belongs to another store")
	}
	return product, nil
}

func (s *ProductService) logError(err error, identity models.Identity, msg string) {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error().Err(err).Int64("user_id", identity.UserID).Msg(msg)
	}
}

func validateProduct(req *models.ProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperr.InvalidArgument("Product name is required")
	}
	if !models.ValidPrice(req.Price) {
		return apperr.InvalidArgument("Price must be non-negative with at most %d decimal places", models.MoneyScale)
	}
	return nil
}

func categoryIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func requireCategories(ctx context.Context, tx *repository.Store, ids []int64) error {
	ok, err := tx.CategoriesExist(ctx, ids)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Category not found")
	}
	return nil
}
