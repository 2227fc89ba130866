package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, store StoreInterface, checker CheckRunner, extractor Extractor, cronSecret string) {
	handlers := NewHandlers(store, checker, extractor, cronSecret)

	v1 := r.Group("/api")
	{
		// Health check (handle both GET and HEAD)
		v1.GET("/health", handlers.HealthCheck)
		v1.HEAD("/health", handlers.HealthCheck)

		// Cron trigger: GET is a no-op probe, POST runs the batch
		v1.GET("/cron/check-prices", handlers.CheckPricesProbe)
		v1.POST("/cron/check-prices", handlers.CheckPrices)

		// Products
		v1.GET("/products", handlers.GetProducts)
		v1.POST("/products", handlers.CreateProduct)
		v1.GET("/products/:id", handlers.GetProduct)
		v1.DELETE("/products/:id", handlers.DeleteProduct)
		v1.GET("/products/:id/history", handlers.GetProductHistory)
	}
}
