// Package checker implements the price-check batch pipeline: it loads every
// tracked product, re-extracts its page, reconciles the fresh data against
// the stored snapshot, records history, and alerts owners on price drops.
package checker

import (
	"context"
	"fmt"
	"log"
	"time"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"
)

// Store defines the store operations needed by the checker
type Store interface {
	ListAllProducts(ctx context.Context) ([]*model.Product, error)
	UpdateProduct(ctx context.Context, id string, upd model.ProductUpdate) error
	AppendHistory(ctx context.Context, entry model.PriceHistoryEntry) error
}

// UserDirectory resolves a product's owning user to a notification address
type UserDirectory interface {
	GetUserEmailByID(ctx context.Context, userID string) (string, error)
}

// Extractor fetches a product page through the extraction service and
// returns normalized data
type Extractor interface {
	Extract(ctx context.Context, url string) (model.ExtractedData, error)
}

// AlertSender delivers a price drop alert to a recipient address
type AlertSender interface {
	SendPriceDropAlert(to string, product *model.Product, oldPrice, newPrice decimal.Decimal) error
}

// Checker runs the batch over all tracked products
type Checker struct {
	store     Store
	users     UserDirectory
	extractor Extractor
	sender    AlertSender
}

// New creates a new checker
func New(store Store, users UserDirectory, extractor Extractor, sender AlertSender) *Checker {
	return &Checker{
		store:     store,
		users:     users,
		extractor: extractor,
		sender:    sender,
	}
}

// Run executes one full batch invocation. It fails only when the product set
// itself cannot be loaded; every per-item failure is absorbed into the report.
func (c *Checker) Run(ctx context.Context) (model.RunReport, error) {
	start := time.Now()

	products, err := c.store.ListAllProducts(ctx)
	if err != nil {
		return model.RunReport{}, fmt.Errorf("failed to load products: %w", err)
	}

	log.Printf("checker: found %d products to check", len(products))

	results := make([]itemResult, 0, len(products))
	for _, p := range products {
		// Stop iterating when the invocation budget is exhausted; items not
		// reached are neither updated nor failed.
		if ctx.Err() != nil {
			log.Printf("checker: run cancelled after %d of %d items", len(results), len(products))
			break
		}
		results = append(results, c.process(ctx, p))
	}

	report := aggregate(len(products), results)

	log.Printf("checker: run completed in %v. total=%d updated=%d failed=%d priceChanges=%d alertsSent=%d",
		time.Since(start), report.Total, report.Updated, report.Failed, report.PriceChanges, report.AlertsSent)

	return report, nil
}

// itemResult is the outcome of processing a single product. A non-nil err
// marks the item failed regardless of which side effects already happened.
type itemResult struct {
	productID    string
	priceChanged bool
	alertSent    bool
	err          error
}

// aggregate folds the per-item results into one report
func aggregate(total int, results []itemResult) model.RunReport {
	report := model.RunReport{Total: total}

	for _, r := range results {
		if r.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", r.productID, r.err))
			continue
		}
		report.Updated++
		if r.priceChanged {
			report.PriceChanges++
		}
		if r.alertSent {
			report.AlertsSent++
		}
	}

	return report
}
