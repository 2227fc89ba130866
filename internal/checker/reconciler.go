package checker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"
)

// process runs extraction and reconciliation for one product. All failure
// paths end up in the result's err; nothing here ever aborts the batch.
func (c *Checker) process(ctx context.Context, p *model.Product) itemResult {
	res := itemResult{productID: p.ID}

	data, err := c.extractor.Extract(ctx, p.URL)
	if err != nil {
		res.err = fmt.Errorf("extraction failed: %w", err)
		return res
	}

	// No alias matched and no name could be derived from the URL slug:
	// the item is unextractable.
	if data.ProductName == "" {
		res.err = fmt.Errorf("no data extracted from URL")
		return res
	}

	if data.CurrentPrice == "" {
		res.err = fmt.Errorf("no price found")
		return res
	}

	newPrice, err := decimal.NewFromString(strings.TrimSpace(data.CurrentPrice))
	if err != nil {
		res.err = fmt.Errorf("unparseable price %q: %w", data.CurrentPrice, err)
		return res
	}

	return c.reconcile(ctx, p, data, newPrice)
}

// reconcile persists the merged snapshot, appends history when the price
// changed, and attempts a drop alert when it fell. Side effects happen in
// that order and are never rolled back.
func (c *Checker) reconcile(ctx context.Context, p *model.Product, data model.ExtractedData, newPrice decimal.Decimal) itemResult {
	res := itemResult{productID: p.ID}
	oldPrice := p.CurrentPrice

	// Extracted values win; stored values are kept when extraction came back
	// empty. Name may be URL-derived, which still counts as an update.
	upd := model.ProductUpdate{
		Name:         coalesce(data.ProductName, p.Name),
		CurrentPrice: newPrice,
		Currency:     coalesce(data.CurrencyCode, p.Currency),
		ImageURL:     coalesce(data.ProductImageURL, p.ImageURL),
		UpdatedAt:    time.Now(),
	}

	if err := c.store.UpdateProduct(ctx, p.ID, upd); err != nil {
		res.err = fmt.Errorf("update failed: %w", err)
		return res
	}

	// Prices are exact currency amounts; any numeric difference counts.
	if newPrice.Equal(oldPrice) {
		return res
	}
	res.priceChanged = true

	log.Printf("checker: price changed for %s: %s -> %s", p.ID, oldPrice, newPrice)

	if err := c.store.AppendHistory(ctx, model.PriceHistoryEntry{
		ProductID: p.ID,
		Price:     newPrice,
		Currency:  upd.Currency,
	}); err != nil {
		res.err = fmt.Errorf("history append failed: %w", err)
		return res
	}

	if newPrice.LessThan(oldPrice) {
		res.alertSent = c.notifyDrop(ctx, p, oldPrice, newPrice)
	}

	return res
}

// notifyDrop attempts a price drop alert. Every miss here is diagnostic only;
// it withholds the alert but never fails the item.
func (c *Checker) notifyDrop(ctx context.Context, p *model.Product, oldPrice, newPrice decimal.Decimal) bool {
	if p.UserID == "" {
		log.Printf("checker: product %s has no owner, skipping alert", p.ID)
		return false
	}

	email, err := c.users.GetUserEmailByID(ctx, p.UserID)
	if err != nil {
		log.Printf("checker: failed to resolve user %s for product %s: %v", p.UserID, p.ID, err)
		return false
	}
	if email == "" {
		log.Printf("checker: user %s has no email, skipping alert for product %s", p.UserID, p.ID)
		return false
	}

	if err := c.sender.SendPriceDropAlert(email, p, oldPrice, newPrice); err != nil {
		log.Printf("checker: price drop alert failed for product %s: %v", p.ID, err)
		return false
	}

	return true
}

func coalesce(fresh, stored string) string {
	if fresh != "" {
		return fresh
	}
	return stored
}
