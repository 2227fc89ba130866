package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/model"
	"pricewatch/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// StoreInterface defines the store interface needed by handlers
type StoreInterface interface {
	ListAllProducts(ctx context.Context) ([]*model.Product, error)
	ListProductsByUser(ctx context.Context, userID string) ([]*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetPriceHistory(ctx context.Context, productID string, limit int) ([]model.PriceHistoryEntry, error)
}

// CheckRunner runs one price-check batch and returns its report
type CheckRunner interface {
	Run(ctx context.Context) (model.RunReport, error)
}

// Extractor seeds a newly registered product with its first extraction
type Extractor interface {
	Extract(ctx context.Context, url string) (model.ExtractedData, error)
}

// Handlers contains all API handlers
type Handlers struct {
	store      StoreInterface
	checker    CheckRunner
	extractor  Extractor
	cronSecret string
}

// NewHandlers creates a new handlers instance
func NewHandlers(store StoreInterface, checker CheckRunner, extractor Extractor, cronSecret string) *Handlers {
	return &Handlers{
		store:      store,
		checker:    checker,
		extractor:  extractor,
		cronSecret: cronSecret,
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// CheckPricesProbe answers the no-op liveness probe without touching the
// store or running the batch
func (h *Handlers) CheckPricesProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Price check endpoint is working. Use POST to trigger.",
	})
}

// CheckPrices is the scheduler-facing trigger for one batch run. The bearer
// secret is the sole gate; nothing is loaded before it passes.
func (h *Handlers) CheckPrices(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")

	if h.cronSecret == "" || authHeader != "Bearer "+h.cronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	report, err := h.checker.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "price check completed",
		"result":  report,
	})
}

// GetProducts returns tracked products, optionally filtered by owner
func (h *Handlers) GetProducts(c *gin.Context) {
	var (
		products []*model.Product
		err      error
	)

	if userID := c.Query("user_id"); userID != "" {
		products, err = h.store.ListProductsByUser(c.Request.Context(), userID)
	} else {
		products, err = h.store.ListAllProducts(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// GetProduct returns a single product by ID
func (h *Handlers) GetProduct(c *gin.Context) {
	id := c.Param("id")

	product, err := h.store.GetProduct(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// CreateProduct registers a URL for tracking and seeds it with a first
// extraction so the user sees name, price and image right away
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req struct {
		URL    string `json:"url" binding:"required,url"`
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and user_id are required"})
		return
	}

	data, err := h.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to extract product data"})
		return
	}
	if data.ProductName == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no product data extracted from URL"})
		return
	}

	price := decimal.Zero
	if data.CurrentPrice != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(data.CurrentPrice)); err == nil {
			price = d
		}
	}

	product := &model.Product{
		ID:           model.NewProductID(req.URL, req.UserID),
		URL:          req.URL,
		Name:         data.ProductName,
		CurrentPrice: price,
		Currency:     data.CurrencyCode,
		ImageURL:     data.ProductImageURL,
		UserID:       req.UserID,
	}

	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// DeleteProduct stops tracking a product
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	err := h.store.DeleteProduct(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetProductHistory returns price history for a product
func (h *Handlers) GetProductHistory(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.store.GetProduct(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get product"})
		return
	}

	// Parse limit parameter (capped at maxLimit)
	const maxLimit = 1000
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			if l > maxLimit {
				limit = maxLimit
			} else {
				limit = l
			}
		}
	}

	history, err := h.store.GetPriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"count":      len(history),
		"history":    history,
	})
}
