package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketplace-api/internal/models"
)

const productColumns = "p.id, p.store_id, p.name, p.description, p.price, p.image_url"

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	var description sql.NullString
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &description, &p.Price, &p.ImageURL); err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	id, err := s.insert(ctx,
		"INSERT INTO products (store_id, name, description, price, image_url) VALUES (?, ?, ?, ?, ?)",
		p.StoreID, p.Name, p.Description, p.Price, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID = id
	return s.replaceProductCategories(ctx, p.ID, p.CategoryIDs)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(s.q.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products p WHERE p.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	if p.CategoryIDs, err = s.productCategoryIDs(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ProductExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check product: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	var conditions []string
	var args []any

	if filter.Name != "" {
		conditions = append(conditions, "LOWER(p.name) LIKE ?")
		args = append(args, likePattern(filter.Name))
	}
	if filter.Search != "" {
		conditions = append(conditions, `(LOWER(p.name) LIKE ? OR EXISTS (
			SELECT 1 FROM product_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id AND LOWER(c.name) LIKE ?))`)
		args = append(args, likePattern(filter.Search), likePattern(filter.Search))
	}
	if filter.CategoryID != 0 {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = ?)")
		args = append(args, filter.CategoryID)
	}
	if filter.StoreID != 0 {
		conditions = append(conditions, "p.store_id = ?")
		args = append(args, filter.StoreID)
	}

	query := "SELECT " + productColumns + " FROM products p"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY p.id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, p := range products {
		if p.CategoryIDs, err = s.productCategoryIDs(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE products SET name = ?, description = ?, price = ?, image_url = ? WHERE id = ?",
		p.Name, p.Description, p.Price, p.ImageURL, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return s.replaceProductCategories(ctx, p.ID, p.CategoryIDs)
}

// DeleteProduct removes the product, its category links, and any cart lines
// that reference it. Affected carts get their totals recomputed.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.removeProductsFromCarts(ctx, []int64{id}); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM product_categories WHERE product_id = ?", id); err != nil {
		return fmt.Errorf("failed to unlink product categories: %w", err)
	}

	result, err := s.q.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) DeleteProductsByStore(ctx context.Context, storeID int64) (int, error) {
	ids, err := s.queryIDs(ctx, "SELECT id FROM products WHERE store_id = ?", storeID)
	if err != nil {
		return 0, fmt.Errorf("failed to list store products: %w", err)
	}
	for _, id := range ids {
		if err := s.DeleteProduct(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to delete product %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func (s *Store) replaceProductCategories(ctx context.Context, productID int64, categoryIDs []int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM product_categories WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("failed to clear product categories: %w", err)
	}

	seen := make(map[int64]struct{}, len(categoryIDs))
	for _, cid := range categoryIDs {
		if _, dup := seen[cid]; dup {
			continue
		}
		seen[cid] = struct{}{}
		if _, err := s.q.ExecContext(ctx,
			"INSERT INTO product_categories (product_id, category_id) VALUES (?, ?)", productID, cid); err != nil {
			return fmt.Errorf("failed to link product category: %w", err)
		}
	}
	return nil
}

func (s *Store) productCategoryIDs(ctx context.Context, productID int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx,
		"SELECT category_id FROM product_categories WHERE product_id = ? ORDER BY category_id", productID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product categories: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
