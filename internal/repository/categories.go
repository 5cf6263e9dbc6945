package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-api/internal/models"
)

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	id, err := s.insert(ctx,
		"INSERT INTO categories (name, image_url, created_at, updated_at) VALUES (?, ?, ?, ?)",
		c.Name, c.ImageURL, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, image_url, created_at, updated_at FROM categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, image_url, created_at, updated_at FROM categories ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.q.ExecContext(ctx,
		"UPDATE categories SET name = ?, image_url = ?, updated_at = ? WHERE id = ?",
		c.Name, c.ImageURL, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

// DeleteCategory unlinks the category from products and stores before
// removing it.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM product_categories WHERE category_id = ?", id); err != nil {
		return fmt.Errorf("failed to unlink category: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, "UPDATE stores SET main_category_id = NULL WHERE main_category_id = ?", id); err != nil {
		return fmt.Errorf("failed to unlink category: %w", err)
	}

	result, err := s.q.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) CategoriesExist(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	unique := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	keys := make([]int64, 0, len(unique))
	for id := range unique {
		keys = append(keys, id)
	}

	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE id IN ("+placeholders(len(keys))+")", int64Args(keys)...,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check categories: %w", err)
	}
	return n == len(keys), nil
}
