package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, syncHandler *SyncHandler, reviewHandler *ReviewHandler, mappingHandler *MappingHandler, reportHandler *ReportHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Sync trigger
	api.POST("/sync", syncHandler.RunSync)

	// Review hooks
	transactions := api.Group("/transactions")
	transactions.POST("/:id/accept-suggestion", reviewHandler.AcceptSuggestion)
	transactions.PUT("/:id/category", reviewHandler.AssignCategory)

	// Operation mappings
	mappings := api.Group("/mappings")
	mappings.POST("", mappingHandler.UpsertMapping)
	mappings.POST("/promote", reviewHandler.PromoteMapping)

	// Aggregate reports
	reports := api.Group("/reports")
	reports.GET("/category-summary", reportHandler.CategorySummary)
}
