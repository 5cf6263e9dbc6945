package db

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to dsn with the named driver and verifies the connection.
// MySQL DSNs need parseTime=true so DATETIME columns scan into time.Time.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverMySQL:
		conn, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping mysql: %w", err)
		}
		return conn, nil

	case DriverSQLite:
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// One connection: ":memory:" databases are per-connection and SQLite
		// allows a single writer anyway.
		conn.SetMaxOpenConns(1)

		pragmas := []string{
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		}
		for _, p := range pragmas {
			if _, err := conn.Exec(p); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
			}
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping sqlite: %w", err)
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func InitDB(driver, dsn string, logger zerolog.Logger) *sql.DB {
	conn, err := Open(driver, dsn)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", driver).Msg("Database connection failed")
	}

	logger.Info().Str("driver", driver).Msg("Connected to database")
	return conn
}

func RunMigrations(conn *sql.DB, driver string) error {
	var queries []string
	switch driver {
	case DriverMySQL:
		queries = mysqlSchema
	case DriverSQLite:
		queries = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", driver)
	}

	for _, q := range queries {
		if _, err := conn.Exec(q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Relations between tables are kept by identifier only; parent deletions
// cascade explicitly in the repository layer. Email and token columns are
// binary-collated so lookups are exact, matching SQLite.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		email VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_email (email)
	);`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id BIGINT NOT NULL,
		role VARCHAR(32) NOT NULL,
		PRIMARY KEY (user_id, role)
	);`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		street VARCHAR(200) NOT NULL DEFAULT '',
		number VARCHAR(20) NOT NULL DEFAULT '',
		complement VARCHAR(200) NOT NULL DEFAULT '',
		city VARCHAR(100) NOT NULL DEFAULT '',
		state VARCHAR(50) NOT NULL DEFAULT '',
		zip_code VARCHAR(20) NOT NULL DEFAULT '',
		is_main TINYINT(1) NOT NULL DEFAULT 0,
		INDEX idx_addresses_user (user_id)
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		image_url VARCHAR(500) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS stores (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(150) NOT NULL DEFAULT '',
		rating DOUBLE NOT NULL DEFAULT 0,
		delivery_time INT NOT NULL DEFAULT 0,
		main_category_id BIGINT NULL,
		UNIQUE KEY uq_stores_owner (owner_id)
	);`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		store_id BIGINT NOT NULL,
		name VARCHAR(200) NOT NULL,
		description TEXT,
		price DECIMAL(20,2) NOT NULL,
		image_url VARCHAR(500) NOT NULL DEFAULT '',
		INDEX idx_products_store (store_id)
	);`,
	`CREATE TABLE IF NOT EXISTS product_categories (
		product_id BIGINT NOT NULL,
		category_id BIGINT NOT NULL,
		PRIMARY KEY (product_id, category_id)
	);`,
	`CREATE TABLE IF NOT EXISTS carts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		total DECIMAL(20,2) NOT NULL DEFAULT 0,
		UNIQUE KEY uq_carts_user (user_id)
	);`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		cart_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(20,2) NOT NULL,
		INDEX idx_cart_items_cart (cart_id)
	);`,
	`CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		token VARCHAR(64) COLLATE utf8mb4_bin NOT NULL,
		email VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		consumed_at DATETIME(6) NULL,
		INDEX idx_reset_token (token)
	);`,
}

// Money columns are TEXT so decimal values round-trip exactly.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY (user_id, role)
	);`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		street TEXT NOT NULL DEFAULT '',
		number TEXT NOT NULL DEFAULT '',
		complement TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip_code TEXT NOT NULL DEFAULT '',
		is_main INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		rating REAL NOT NULL DEFAULT 0,
		delivery_time INTEGER NOT NULL DEFAULT 0,
		main_category_id INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS product_categories (
		product_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL,
		PRIMARY KEY (product_id, category_id)
	);`,
	`CREATE TABLE IF NOT EXISTS carts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE,
		total TEXT NOT NULL DEFAULT '0'
	);`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cart_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL,
		email TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		consumed_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reset_token ON password_reset_tokens (token);`,
	`CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items (cart_id);`,
	`CREATE INDEX IF NOT EXISTS idx_products_store ON products (store_id);`,
}
