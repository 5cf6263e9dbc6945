package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"marketplace-api/internal/models"
)

func (s *Store) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	id, err := s.insert(ctx, "INSERT INTO carts (user_id, total) VALUES (?, ?)", userID, decimal.Zero)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &models.Cart{ID: id, UserID: userID, Items: []models.CartLine{}, Total: decimal.Zero}, nil
}

// GetCartByUserEmail loads the cart with all of its lines.
func (s *Store) GetCartByUserEmail(ctx context.Context, email string) (*models.Cart, error) {
	return s.getCart(ctx,
		"SELECT c.id, c.user_id, c.total FROM carts c JOIN users u ON u.id = c.user_id WHERE u.email = ?", email)
}

func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.getCart(ctx, "SELECT c.id, c.user_id, c.total FROM carts c WHERE c.user_id = ?", userID)
}

func (s *Store) getCart(ctx context.Context, query string, arg any) (*models.Cart, error) {
	var cart models.Cart
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&cart.ID, &cart.UserID, &cart.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}

	if cart.Items, err = s.cartLines(ctx, cart.ID); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) cartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, product_id, quantity, price FROM cart_items WHERE cart_id = ? ORDER BY id", cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart items: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SaveCart replaces the stored lines with cart.Items and writes cart.Total.
// Generated line identifiers are written back into cart.Items.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = ?", cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	for i := range cart.Items {
		line := &cart.Items[i]
		id, err := s.insert(ctx,
			"INSERT INTO cart_items (cart_id, product_id, quantity, price) VALUES (?, ?, ?, ?)",
			cart.ID, line.ProductID, line.Quantity, line.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
		line.ID = id
	}

	result, err := s.q.ExecContext(ctx, "UPDATE carts SET total = ? WHERE id = ?", cart.Total, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to update cart total: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		var exists int
		if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM carts WHERE id = ?", cart.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check cart: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Store) DeleteCartByUser(ctx context.Context, userID int64) error {
	ids, err := s.queryIDs(ctx, "SELECT id FROM carts WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to find cart: %w", err)
	}
	for _, id := range ids {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete cart items: %w", err)
		}
		if _, err := s.q.ExecContext(ctx, "DELETE FROM carts WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete cart: %w", err)
		}
	}
	return nil
}

// removeProductsFromCarts drops lines for the given products and recomputes
// the totals of every cart that held one, so no stored total drifts from its
// lines.
func (s *Store) removeProductsFromCarts(ctx context.Context, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	in := placeholders(len(productIDs))
	args := int64Args(productIDs)

	cartIDs, err := s.queryIDs(ctx, "SELECT DISTINCT cart_id FROM cart_items WHERE product_id IN ("+in+")", args...)
	if err != nil {
		return fmt.Errorf("failed to find carts holding products: %w", err)
	}
	if len(cartIDs) == 0 {
		return nil
	}

	if _, err := s.q.ExecContext(ctx, "DELETE FROM cart_items WHERE product_id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("failed to remove products from carts: %w", err)
	}

	for _, cartID := range cartIDs {
		lines, err := s.cartLines(ctx, cartID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.Subtotal())
		}
		if _, err := s.q.ExecContext(ctx, "UPDATE carts SET total = ? WHERE id = ?", total, cartID); err != nil {
			return fmt.Errorf("failed to update cart total: %w", err)
		}
	}
	return nil
}
