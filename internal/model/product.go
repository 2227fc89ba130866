package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a user-registered URL plus the last known snapshot of its
// extracted attributes
type Product struct {
	ID           string          `json:"id" db:"id"`
	URL          string          `json:"url" db:"url"`
	Name         string          `json:"name" db:"name"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	Currency     string          `json:"currency" db:"currency"`
	ImageURL     string          `json:"image_url,omitempty" db:"image_url"`
	UserID       string          `json:"user_id,omitempty" db:"user_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries the reconciled snapshot written back after a check.
// Every field is written; the reconciler pre-merges extracted values with the
// stored ones before building it.
type ProductUpdate struct {
	Name         string
	CurrentPrice decimal.Decimal
	Currency     string
	ImageURL     string
	UpdatedAt    time.Time
}

// PriceHistoryEntry is one append-only price observation for a product
type PriceHistoryEntry struct {
	ProductID  string          `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ExtractedData is the normalized result of one extraction call. It is never
// persisted as-is; an empty CurrentPrice means the extractor found no price.
type ExtractedData struct {
	ProductName     string `json:"product_name"`
	CurrentPrice    string `json:"current_price"`
	CurrencyCode    string `json:"currency_code"`
	ProductImageURL string `json:"product_image_url"`
}

// User is a registered account; the pipeline only ever resolves it to an
// alert recipient address
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProductID creates a unique product ID from the tracked URL and owner
func NewProductID(url, userID string) string {
	return "p:" + hashString(url+"|"+userID+"|"+strconv.FormatInt(time.Now().UnixNano(), 10))
}

func hashString(s string) string {
	// FNV-1a for compact, well-distributed IDs
	const prime32 = 16777619
	hash32 := uint32(2166136261)

	for i, c := range s {
		if i > 100 { // Hash first 100 chars
			break
		}
		hash32 ^= uint32(c)
		hash32 *= prime32
	}

	// Convert to base36 string for compact representation
	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	var result [8]byte
	for i := 0; i < 8; i++ {
		result[i] = charset[hash32%36]
		hash32 /= 36
	}
	return string(result[:])
}

// RunReport aggregates one batch invocation
type RunReport struct {
	Total        int      `json:"total"`
	Updated      int      `json:"updated"`
	Failed       int      `json:"failed"`
	PriceChanges int      `json:"priceChanges"`
	AlertsSent   int      `json:"alertsSent"`
	Errors       []string `json:"errors,omitempty"`
}
