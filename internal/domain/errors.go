package domain

import "errors"

// Domain errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternalError       = errors.New("internal error")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMappingNotFound     = errors.New("operation mapping not found")
	ErrCategoryNotFound    = errors.New("budget category not found")
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrNoSuggestion        = errors.New("transaction has no suggested category")
	ErrNotReviewable       = errors.New("transaction is not awaiting review")
	ErrInvalidDateRange    = errors.New("date_from must not be after date_to")
	ErrInvalidAmount       = errors.New("amount must be non-negative")
	ErrMissingExternalID   = errors.New("external id is required")
	ErrInvalidConfidence   = errors.New("confidence must be between 0 and 1")
	ErrLabelRequired       = errors.New("operation label is required")
)

// Validation constants
const (
	MaxOperationLabelLength = 255
)
