package service

import (
	"strings"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
)

// MappingService handles operation-mapping business logic
type MappingService struct {
	mappingRepo     domain.OperationMappingRepository
	categoryRepo    domain.BudgetCategoryRepository
	transactionRepo domain.TransactionRepository
}

// NewMappingService creates a new MappingService
func NewMappingService(mappingRepo domain.OperationMappingRepository, categoryRepo domain.BudgetCategoryRepository, transactionRepo domain.TransactionRepository) *MappingService {
	return &MappingService{
		mappingRepo:     mappingRepo,
		categoryRepo:    categoryRepo,
		transactionRepo: transactionRepo,
	}
}

// Resolve returns the authoritative mapping for a label within a department.
func (s *MappingService) Resolve(operationLabel string, departmentID int32) (*domain.OperationMapping, error) {
	return s.mappingRepo.Resolve(operationLabel, departmentID)
}

// UpsertMappingInput holds the input for creating or superseding a mapping
type UpsertMappingInput struct {
	OperationLabel string
	CategoryID     *int32 // nil creates an exclusion stub
	Priority       int32
	Confidence     float64
}

// Upsert creates a mapping and deactivates any previously active mappings for
// the same label+department, keeping a single authoritative rule. Superseded
// mappings are deactivated, never deleted.
func (s *MappingService) Upsert(departmentID int32, input UpsertMappingInput) (*domain.OperationMapping, error) {
	label := strings.TrimSpace(input.OperationLabel)
	if label == "" {
		return nil, domain.ErrLabelRequired
	}
	if len(label) > domain.MaxOperationLabelLength {
		return nil, domain.ErrInvalidInput
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return nil, domain.ErrInvalidConfidence
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(departmentID, *input.CategoryID); err != nil {
			return nil, domain.ErrCategoryNotFound
		}
	}

	existing, err := s.mappingRepo.ListActive(label, departmentID)
	if err != nil {
		return nil, err
	}
	for _, old := range existing {
		if err := s.mappingRepo.Deactivate(departmentID, old.ID); err != nil {
			return nil, err
		}
	}

	return s.mappingRepo.Create(&domain.OperationMapping{
		DepartmentID:   departmentID,
		OperationLabel: label,
		CategoryID:     input.CategoryID,
		Priority:       input.Priority,
		Confidence:     input.Confidence,
		IsActive:       true,
	})
}

// PromoteFromTransaction turns a reviewed transaction into a learned mapping:
// the transaction's operation label becomes a rule for its assigned category.
// This is the explicit learning step; classification itself never writes.
func (s *MappingService) PromoteFromTransaction(departmentID int32, transactionID int32) (*domain.OperationMapping, error) {
	tx, err := s.transactionRepo.GetByID(departmentID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TransactionStatusCategorized || tx.CategoryID == nil {
		return nil, domain.ErrNotReviewable
	}
	if tx.OperationLabel == nil || strings.TrimSpace(*tx.OperationLabel) == "" {
		return nil, domain.ErrLabelRequired
	}

	return s.Upsert(departmentID, UpsertMappingInput{
		OperationLabel: *tx.OperationLabel,
		CategoryID:     tx.CategoryID,
		Priority:       0,
		Confidence:     promotedMappingConfidence,
	})
}

// promotedMappingConfidence is the weight a freshly promoted mapping starts
// with. High enough to auto-assign under the default threshold.
const promotedMappingConfidence = 0.9
