package handler

import (
	"errors"
	"net/http"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/Roughriver74/west-buget-it-sub003/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// MappingHandler handles operation mapping HTTP requests
type MappingHandler struct {
	mappingService *service.MappingService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappingService *service.MappingService) *MappingHandler {
	return &MappingHandler{mappingService: mappingService}
}

// UpsertMappingRequest represents the mapping upsert request body
type UpsertMappingRequest struct {
	DepartmentID   int32   `json:"departmentId"`
	OperationLabel string  `json:"operationLabel"`
	CategoryID     *int32  `json:"categoryId,omitempty"`
	Priority       int32   `json:"priority"`
	Confidence     float64 `json:"confidence"`
}

// UpsertMapping handles POST /api/v1/mappings
func (h *MappingHandler) UpsertMapping(c echo.Context) error {
	var req UpsertMappingRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	mapping, err := h.mappingService.Upsert(req.DepartmentID, service.UpsertMappingInput{
		OperationLabel: req.OperationLabel,
		CategoryID:     req.CategoryID,
		Priority:       req.Priority,
		Confidence:     req.Confidence,
	})
	if err != nil {
		if errors.Is(err, domain.ErrLabelRequired) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "operationLabel", Message: "Operation label is required"},
			})
		}
		if errors.Is(err, domain.ErrInvalidConfidence) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "confidence", Message: "Confidence must be between 0 and 1"},
			})
		}
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		log.Error().Err(err).Int32("department_id", req.DepartmentID).Msg("Failed to upsert mapping")
		return NewInternalError(c, "Failed to upsert mapping")
	}
	return c.JSON(http.StatusCreated, mapping)
}
