package service

import (
	"github.com/Roughriver74/west-buget-it-sub003/internal/cache"
	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/rs/zerolog/log"
)

// ReviewService handles human review actions on classified transactions
type ReviewService struct {
	transactionRepo domain.TransactionRepository
	categoryRepo    domain.BudgetCategoryRepository
	aggregates      AggregateInvalidator
}

// NewReviewService creates a new ReviewService
func NewReviewService(transactionRepo domain.TransactionRepository, categoryRepo domain.BudgetCategoryRepository, aggregates AggregateInvalidator) *ReviewService {
	return &ReviewService{
		transactionRepo: transactionRepo,
		categoryRepo:    categoryRepo,
		aggregates:      aggregates,
	}
}

// AcceptSuggestion promotes a NEEDS_REVIEW transaction to CATEGORIZED using
// its stored suggested category. Acceptance is a human confirmation, so
// confidence is pinned to 1.0 just like a manual assignment; the classifier's
// sub-threshold score must not survive into a categorized row.
func (s *ReviewService) AcceptSuggestion(departmentID int32, transactionID int32) (*domain.Transaction, error) {
	tx, err := s.transactionRepo.GetByID(departmentID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TransactionStatusNeedsReview {
		return nil, domain.ErrNotReviewable
	}
	if tx.SuggestedCategoryID == nil {
		return nil, domain.ErrNoSuggestion
	}

	confidence := 1.0
	updated, err := s.transactionRepo.UpdateClassification(departmentID, transactionID, &domain.ClassificationData{
		CategoryID: tx.SuggestedCategoryID,
		Confidence: &confidence,
		Status:     domain.TransactionStatusCategorized,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateFor(updated)
	log.Info().
		Int32("transaction_id", transactionID).
		Int32("category_id", *updated.CategoryID).
		Msg("Suggestion accepted")
	return updated, nil
}

// AssignCategory manually overrides a transaction's category. Manual review is
// the strongest signal, so confidence is pinned to 1.0.
func (s *ReviewService) AssignCategory(departmentID int32, transactionID int32, categoryID int32) (*domain.Transaction, error) {
	tx, err := s.transactionRepo.GetByID(departmentID, transactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.categoryRepo.GetByID(departmentID, categoryID); err != nil {
		return nil, domain.ErrCategoryNotFound
	}

	confidence := 1.0
	updated, err := s.transactionRepo.UpdateClassification(departmentID, transactionID, &domain.ClassificationData{
		CategoryID: &categoryID,
		Confidence: &confidence,
		Status:     domain.TransactionStatusCategorized,
	})
	if err != nil {
		return nil, err
	}

	// Both the previous and the new category's rollups are stale now.
	s.invalidateFor(tx)
	s.invalidateFor(updated)
	log.Info().
		Int32("transaction_id", transactionID).
		Int32("category_id", categoryID).
		Msg("Category assigned manually")
	return updated, nil
}

func (s *ReviewService) invalidateFor(tx *domain.Transaction) {
	if tx.CategoryID == nil {
		return
	}
	year := tx.TransactionDate.Year()
	s.aggregates.Invalidate(cache.Filter{
		CategoryID:   tx.CategoryID,
		Year:         &year,
		DepartmentID: &tx.DepartmentID,
	})
}
