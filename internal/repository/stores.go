package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-api/internal/models"
)

const storeSelect = `SELECT s.id, s.owner_id, u.email, s.name, s.rating, s.delivery_time, s.main_category_id
	FROM stores s JOIN users u ON u.id = s.owner_id`

func scanStore(row interface{ Scan(...any) error }) (*models.Store, error) {
	var st models.Store
	var mainCategory sql.NullInt64
	err := row.Scan(&st.ID, &st.OwnerID, &st.OwnerEmail, &st.Name, &st.Rating, &st.DeliveryTime, &mainCategory)
	if err != nil {
		return nil, err
	}
	if mainCategory.Valid {
		v := mainCategory.Int64
		st.MainCategoryID = &v
	}
	return &st, nil
}

func (s *Store) CreateStore(ctx context.Context, st *models.Store) error {
	id, err := s.insert(ctx,
		"INSERT INTO stores (owner_id, name, rating, delivery_time, main_category_id) VALUES (?, ?, ?, ?, ?)",
		st.OwnerID, st.Name, st.Rating, st.DeliveryTime, st.MainCategoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	st.ID = id
	return nil
}

func (s *Store) getStore(ctx context.Context, where string, arg any) (*models.Store, error) {
	st, err := scanStore(s.q.QueryRowContext(ctx, storeSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch store: %w", err)
	}
	return st, nil
}

func (s *Store) GetStoreByOwnerEmail(ctx context.Context, email string) (*models.Store, error) {
	return s.getStore(ctx, "u.email = ?", email)
}

func (s *Store) GetStoreByOwnerID(ctx context.Context, ownerID int64) (*models.Store, error) {
	return s.getStore(ctx, "s.owner_id = ?", ownerID)
}

func (s *Store) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	return s.getStore(ctx, "s.id = ?", id)
}

func (s *Store) ListTopStores(ctx context.Context, limit int) ([]models.Store, error) {
	rows, err := s.q.QueryContext(ctx, storeSelect+" ORDER BY s.rating DESC, s.id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning store: %w", err)
		}
		stores = append(stores, *st)
	}
	return stores, rows.Err()
}

// DeleteStore removes the store row only; callers delete its products first.
func (s *Store) DeleteStore(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM stores WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	return requireAffected(result)
}
