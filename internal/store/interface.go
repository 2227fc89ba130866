package store

import (
	"context"
	"errors"

	"pricewatch/internal/model"
)

// ErrNotFound is returned when a product or user does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the complete interface for durable storage of tracked
// products, their price history, and the user directory used to resolve
// alert recipients.
type Store interface {
	// Product operations
	ListAllProducts(ctx context.Context) ([]*model.Product, error)
	ListProductsByUser(ctx context.Context, userID string) ([]*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, id string, upd model.ProductUpdate) error
	DeleteProduct(ctx context.Context, id string) error

	// Price history operations
	AppendHistory(ctx context.Context, entry model.PriceHistoryEntry) error
	GetPriceHistory(ctx context.Context, productID string, limit int) ([]model.PriceHistoryEntry, error)

	// User directory operations
	GetUserEmailByID(ctx context.Context, userID string) (string, error)
	UpsertUser(ctx context.Context, u *model.User) error

	Close() error
}
