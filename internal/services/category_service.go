package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

type CategoryService struct {
	store  *repository.Store
	logger zerolog.Logger
}

func NewCategoryService(store *repository.Store, logger zerolog.Logger) *CategoryService {
	return &CategoryService{store: store, logger: logger}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Category not found", "failed to fetch category")
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, req *models.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("Category name is required")
	}

	c := &models.Category{Name: name, ImageURL: req.ImageURL}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("Error creating category")
		return nil, err
	}
	s.logger.Info().Int64("category_id", c.ID).Msg("Category created")
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, req *models.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("Category name is required")
	}

	var c *models.Category
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		if c, err = tx.GetCategory(ctx, id); err != nil {
			return notFoundOr(err, "Category not found", "failed to fetch category")
		}
		c.Name = name
		c.ImageURL = req.ImageURL
		return tx.UpdateCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete unlinks the category from products and stores, then removes it.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return notFoundOr(err, "Category not found", "failed to delete category")
	}
	s.logger.Info().Int64("category_id", id).Msg("Category deleted")
	return nil
}
