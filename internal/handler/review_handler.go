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

// ReviewHandler handles manual review HTTP requests
type ReviewHandler struct {
	reviewService  *service.ReviewService
	mappingService *service.MappingService
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService *service.ReviewService, mappingService *service.MappingService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, mappingService: mappingService}
}

// AcceptSuggestionRequest represents the accept-suggestion request body
type AcceptSuggestionRequest struct {
	DepartmentID int32 `json:"departmentId"`
}

// AssignCategoryRequest represents the manual category override request body
type AssignCategoryRequest struct {
	DepartmentID int32 `json:"departmentId"`
	CategoryID   int32 `json:"categoryId"`
}

// PromoteMappingRequest represents the mapping promotion request body
type PromoteMappingRequest struct {
	DepartmentID  int32 `json:"departmentId"`
	TransactionID int32 `json:"transactionId"`
}

// AcceptSuggestion handles POST /api/v1/transactions/:id/accept-suggestion
func (h *ReviewHandler) AcceptSuggestion(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}
	var req AcceptSuggestionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	tx, err := h.reviewService.AcceptSuggestion(req.DepartmentID, id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if errors.Is(err, domain.ErrNotReviewable) || errors.Is(err, domain.ErrNoSuggestion) {
			return NewConflictError(c, "Transaction is not awaiting review with a suggestion")
		}
		log.Error().Err(err).Int32("transaction_id", id).Msg("Failed to accept suggestion")
		return NewInternalError(c, "Failed to accept suggestion")
	}
	return c.JSON(http.StatusOK, tx)
}

// AssignCategory handles PUT /api/v1/transactions/:id/category
func (h *ReviewHandler) AssignCategory(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}
	var req AssignCategoryRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.CategoryID == 0 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "categoryId", Message: "Category is required"},
		})
	}

	tx, err := h.reviewService.AssignCategory(req.DepartmentID, id, req.CategoryID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		log.Error().Err(err).Int32("transaction_id", id).Msg("Failed to assign category")
		return NewInternalError(c, "Failed to assign category")
	}
	return c.JSON(http.StatusOK, tx)
}

// PromoteMapping handles POST /api/v1/mappings/promote
func (h *ReviewHandler) PromoteMapping(c echo.Context) error {
	var req PromoteMappingRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	mapping, err := h.mappingService.PromoteFromTransaction(req.DepartmentID, req.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if errors.Is(err, domain.ErrNotReviewable) || errors.Is(err, domain.ErrLabelRequired) {
			return NewConflictError(c, "Transaction is not categorized or has no operation label")
		}
		log.Error().Err(err).Int32("transaction_id", req.TransactionID).Msg("Failed to promote mapping")
		return NewInternalError(c, "Failed to promote mapping")
	}
	return c.JSON(http.StatusCreated, mapping)
}

func parseIDParam(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return int32(id), nil
}
