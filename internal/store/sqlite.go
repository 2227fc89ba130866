package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages product, history and user data using SQLite
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	dataDir string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLiteStore instance
func NewSQLite(dataDir string) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataDir, "pricewatch.db")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Open database with WAL mode and foreign keys enabled
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		dataDir: dataDir,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates tables and indexes
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		current_price TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'USD',
		image_url TEXT,
		user_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_products_user_id ON products(user_id);
	CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id);
	CREATE INDEX IF NOT EXISTS idx_price_history_product_recorded ON price_history(product_id, recorded_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

const productColumns = `id, url, name, current_price, currency, image_url, user_id, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	p := &model.Product{}
	var price string
	var imageURL, userID sql.NullString
	var created, updated int64

	if err := row.Scan(&p.ID, &p.URL, &p.Name, &price, &p.Currency, &imageURL, &userID, &created, &updated); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q for product %s: %w", price, p.ID, err)
	}
	p.CurrentPrice = d

	if imageURL.Valid {
		p.ImageURL = imageURL.String
	}
	if userID.Valid {
		p.UserID = userID.String
	}
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)

	return p, nil
}

// ListAllProducts returns every tracked product ordered by creation time
func (s *SQLiteStore) ListAllProducts(ctx context.Context) ([]*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// ListProductsByUser returns the products tracked by one user
func (s *SQLiteStore) ListProductsByUser(ctx context.Context, userID string) ([]*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products for user %s: %w", userID, err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// GetProduct returns a single product by ID
func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

// CreateProduct inserts a new tracked product
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, url, name, current_price, currency, image_url, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.URL, p.Name, p.CurrentPrice.String(), p.Currency,
		nullable(p.ImageURL), nullable(p.UserID), p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// UpdateProduct writes the reconciled snapshot for a product. The URL and
// owner are immutable and never touched.
func (s *SQLiteStore) UpdateProduct(ctx context.Context, id string, upd model.ProductUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, current_price = ?, currency = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		upd.Name, upd.CurrentPrice.String(), upd.Currency, nullable(upd.ImageURL), upd.UpdatedAt.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteProduct removes a product and, via cascade, its price history
func (s *SQLiteStore) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendHistory records one price observation
func (s *SQLiteStore) AppendHistory(ctx context.Context, entry model.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordedAt := entry.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (product_id, price, currency, recorded_at)
		VALUES (?, ?, ?, ?)`,
		entry.ProductID, entry.Price.String(), entry.Currency, recordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append history for product %s: %w", entry.ProductID, err)
	}

	return nil
}

// GetPriceHistory returns the most recent price observations for a product,
// oldest first
func (s *SQLiteStore) GetPriceHistory(ctx context.Context, productID string, limit int) ([]model.PriceHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, price, currency, recorded_at
		FROM (
			SELECT product_id, price, currency, recorded_at
			FROM price_history
			WHERE product_id = ?
			ORDER BY recorded_at DESC
			LIMIT ?
		)
		ORDER BY recorded_at`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for product %s: %w", productID, err)
	}
	defer rows.Close()

	var history []model.PriceHistoryEntry
	for rows.Next() {
		var e model.PriceHistoryEntry
		var price string
		var recorded int64

		if err := rows.Scan(&e.ProductID, &price, &e.Currency, &recorded); err != nil {
			return nil, err
		}

		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid stored history price %q: %w", price, err)
		}
		e.Price = d
		e.RecordedAt = time.Unix(recorded, 0)

		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

// GetUserEmailByID resolves a user id to a notification address
func (s *SQLiteStore) GetUserEmailByID(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", userID, err)
	}

	return email, nil
}

// UpsertUser inserts a user or refreshes the email on conflict
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email`,
		u.ID, u.Email, u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}

	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
