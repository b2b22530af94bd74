package api

import (
	"net/http"

	"receipt-verification-api/internal/middleware"
	"receipt-verification-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the HTTP API
type Handler struct {
	Receipts     *services.ReceiptService
	Projects     *services.ProjectService
	Gatherer     prometheus.Gatherer
	AdminAPIKey  string
	BatchMaxSize int
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	r.Use(middleware.RequestID())

	api := r.Group("/api")
	{
		// Receipt routes (require project authentication)
		receipts := api.Group("/receipts")
		receipts.Use(middleware.ProjectAuthMiddleware(h.Projects))
		{
			receipts.POST("/verify", h.VerifyReceipt)
			receipts.POST("/validate", h.ValidateReceipt)
			receipts.POST("/verify-batch", h.VerifyReceiptBatch)
		}

		api.GET("/stats", middleware.ProjectAuthMiddleware(h.Projects), h.GetStats)

		// Project management routes (for admin use)
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(h.AdminAPIKey))
		{
			admin.GET("/projects", h.GetProjects)
			admin.POST("/projects", h.CreateProject)
			admin.GET("/projects/:id", h.GetProject)
			admin.PUT("/projects/:id", h.UpdateProject)
			admin.DELETE("/projects/:id", h.DeleteProject)
			admin.GET("/projects/:id/stats", h.GetProjectStats)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "receipt-verification-service",
		})
	})

	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}
}
