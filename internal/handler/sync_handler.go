package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/Roughriver74/west-buget-it-sub003/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const requestDateFormat = "2006-01-02"

// SyncHandler handles ledger synchronization HTTP requests
type SyncHandler struct {
	syncService      *service.SyncService
	defaultBatchSize int
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *service.SyncService, defaultBatchSize int) *SyncHandler {
	return &SyncHandler{syncService: syncService, defaultBatchSize: defaultBatchSize}
}

// RunSyncRequest represents the sync trigger request body
type RunSyncRequest struct {
	DateFrom             string `json:"dateFrom"`
	DateTo               string `json:"dateTo"`
	DepartmentID         int32  `json:"departmentId"`
	AutoClassify         *bool  `json:"autoClassify,omitempty"`
	Reclassify           bool   `json:"reclassify,omitempty"`
	ApplyDefaultCategory bool   `json:"applyDefaultCategory,omitempty"`
	BatchSize            int    `json:"batchSize,omitempty"`
}

// RunSync handles POST /api/v1/sync. A run with per-record failures is still a
// 200: callers inspect the returned counts and error list.
func (h *SyncHandler) RunSync(c echo.Context) error {
	var req RunSyncRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	dateFrom, err := time.Parse(requestDateFormat, req.DateFrom)
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "dateFrom", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}
	dateTo, err := time.Parse(requestDateFormat, req.DateTo)
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "dateTo", Message: "Must be a date in YYYY-MM-DD format"},
		})
	}
	if req.DepartmentID == 0 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "departmentId", Message: "Department is required"},
		})
	}

	autoClassify := true
	if req.AutoClassify != nil {
		autoClassify = *req.AutoClassify
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = h.defaultBatchSize
	}

	result, err := h.syncService.Run(c.Request().Context(), service.RunParams{
		DateFrom:             dateFrom,
		DateTo:               dateTo,
		DepartmentID:         req.DepartmentID,
		AutoClassify:         autoClassify,
		Reclassify:           req.Reclassify,
		ApplyDefaultCategory: req.ApplyDefaultCategory,
		BatchSize:            batchSize,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDateRange) {
			return NewValidationError(c, "dateFrom must not be after dateTo", nil)
		}
		if errors.Is(err, domain.ErrDepartmentNotFound) {
			return NewNotFoundError(c, "Department not found")
		}
		log.Error().Err(err).Int32("department_id", req.DepartmentID).Msg("Sync run failed")
		return NewUpstreamError(c, "Sync run aborted: "+err.Error())
	}

	return c.JSON(http.StatusOK, result)
}
