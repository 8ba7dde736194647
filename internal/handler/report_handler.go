package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/Roughriver74/west-buget-it-sub003/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ReportHandler handles aggregate report HTTP requests
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// CategorySummary handles GET /api/v1/reports/category-summary
func (h *ReportHandler) CategorySummary(c echo.Context) error {
	departmentID, err := queryInt32(c, "department_id")
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "department_id", Message: "Must be a positive integer"},
		})
	}
	categoryID, err := queryInt32(c, "category_id")
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "category_id", Message: "Must be a positive integer"},
		})
	}
	year, err := strconv.Atoi(c.QueryParam("year"))
	if err != nil || year < 2000 || year > 2100 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "year", Message: "Must be a four-digit year"},
		})
	}

	summary, err := h.reportService.CategorySummary(departmentID, categoryID, year)
	if err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		log.Error().Err(err).
			Int32("department_id", departmentID).
			Int32("category_id", categoryID).
			Int("year", year).
			Msg("Failed to compute category summary")
		return NewInternalError(c, "Failed to compute category summary")
	}
	return c.JSON(http.StatusOK, summary)
}

func queryInt32(c echo.Context, name string) (int32, error) {
	value, err := strconv.ParseInt(c.QueryParam(name), 10, 32)
	if err != nil || value <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return int32(value), nil
}
