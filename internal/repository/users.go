package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-api/internal/models"
)

const userColumns = "id, first_name, last_name, email, phone, password_hash, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the user together with its roles and addresses.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx,
		"INSERT INTO users (first_name, last_name, email, phone, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.FirstName, u.LastName, u.Email, u.Phone, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ID = id

	if err := s.ReplaceUserRoles(ctx, u.ID, u.Roles); err != nil {
		return err
	}
	return s.ReplaceUserAddresses(ctx, u.ID, u.Addresses)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return s.loadUser(ctx, row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return s.loadUser(ctx, row)
}

func (s *Store) loadUser(ctx context.Context, row *sql.Row) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if u.Roles, err = s.userRoles(ctx, u.ID); err != nil {
		return nil, err
	}
	if u.Addresses, err = s.userAddresses(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, u := range users {
		if u.Roles, err = s.userRoles(ctx, u.ID); err != nil {
			return nil, err
		}
		if u.Addresses, err = s.userAddresses(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET first_name = ?, last_name = ?, email = ?, phone = ? WHERE id = ?",
		u.FirstName, u.LastName, u.Email, u.Phone, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, hash string) error {
	result, err := s.q.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	for _, q := range []string{
		"DELETE FROM user_roles WHERE user_id = ?",
		"DELETE FROM addresses WHERE user_id = ?",
	} {
		if _, err := s.q.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete user children: %w", err)
		}
	}

	result, err := s.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) ReplaceUserRoles(ctx context.Context, userID int64, roles models.RoleSet) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	for _, r := range roles.Slice() {
		if _, err := s.q.ExecContext(ctx, "INSERT INTO user_roles (user_id, role) VALUES (?, ?)", userID, r.String()); err != nil {
			return fmt.Errorf("failed to insert role: %w", err)
		}
	}
	return nil
}

func (s *Store) ReplaceUserAddresses(ctx context.Context, userID int64, addresses []models.Address) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM addresses WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear addresses: %w", err)
	}
	for i := range addresses {
		a := &addresses[i]
		id, err := s.insert(ctx,
			`INSERT INTO addresses (user_id, street, number, complement, city, state, zip_code, is_main)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, a.Street, a.Number, a.Complement, a.City, a.State, a.ZipCode, a.Main,
		)
		if err != nil {
			return fmt.Errorf("failed to insert address: %w", err)
		}
		a.ID = id
		a.UserID = userID
	}
	return nil
}

func (s *Store) userRoles(ctx context.Context, userID int64) (models.RoleSet, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT role FROM user_roles WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	defer rows.Close()

	roles := models.NewRoleSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning role: %w", err)
		}
		role, err := models.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("stored role for user %d: %w", userID, err)
		}
		roles[role] = struct{}{}
	}
	return roles, rows.Err()
}

func (s *Store) userAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, street, number, complement, city, state, zip_code, is_main
		 FROM addresses WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch addresses: %w", err)
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.Number, &a.Complement, &a.City, &a.State, &a.ZipCode, &a.Main); err != nil {
			return nil, fmt.Errorf("error scanning address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// requireAffected maps a zero-row delete to ErrNotFound. Not used for plain
// updates: MySQL reports unchanged rows as unaffected.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
