package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/Roughriver74/west-buget-it-sub003/internal/testutil"
	"github.com/shopspring/decimal"
)

type reviewFixture struct {
	transactions *testutil.MockTransactionRepository
	categories   *testutil.MockBudgetCategoryRepository
	invalidator  *recordingInvalidator
	service      *ReviewService
}

func newReviewFixture() *reviewFixture {
	f := &reviewFixture{
		transactions: testutil.NewMockTransactionRepository(),
		categories:   testutil.NewMockBudgetCategoryRepository(),
		invalidator:  &recordingInvalidator{},
	}
	f.service = NewReviewService(f.transactions, f.categories, f.invalidator)
	return f
}

func (f *reviewFixture) addNeedsReview(suggested int32, confidence float64) *domain.Transaction {
	return f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID:        3,
		ExternalID:          "p-1",
		PaymentType:         domain.PaymentTypePayment,
		Amount:              decimal.NewFromInt(100),
		TransactionDate:     time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		SuggestedCategoryID: &suggested,
		Confidence:          &confidence,
		Status:              domain.TransactionStatusNeedsReview,
		IsActive:            true,
	})
}

func TestAcceptSuggestion(t *testing.T) {
	f := newReviewFixture()
	tx := f.addNeedsReview(5, 0.6)

	updated, err := f.service.AcceptSuggestion(3, tx.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if updated.Status != domain.TransactionStatusCategorized {
		t.Errorf("Expected categorized status, got %s", updated.Status)
	}
	if updated.CategoryID == nil || *updated.CategoryID != 5 {
		t.Errorf("Expected category 5, got %v", updated.CategoryID)
	}
	if updated.Confidence == nil || *updated.Confidence != 1.0 {
		t.Errorf("Expected acceptance to pin confidence 1.0, got %v", updated.Confidence)
	}

	if len(f.invalidator.filters) != 1 {
		t.Fatalf("Expected one invalidation, got %v", f.invalidator.filters)
	}
	filter := f.invalidator.filters[0]
	if filter.CategoryID == nil || *filter.CategoryID != 5 ||
		filter.Year == nil || *filter.Year != 2025 ||
		filter.DepartmentID == nil || *filter.DepartmentID != 3 {
		t.Errorf("Expected an exact invalidation for the accepted category, got %+v", filter)
	}
}

func TestAcceptSuggestion_Guards(t *testing.T) {
	f := newReviewFixture()

	categorized := f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID: 3, ExternalID: "p-1", PaymentType: domain.PaymentTypePayment,
		Amount: decimal.NewFromInt(100), Status: domain.TransactionStatusCategorized, IsActive: true,
	})
	noSuggestion := f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID: 3, ExternalID: "p-2", PaymentType: domain.PaymentTypePayment,
		Amount: decimal.NewFromInt(100), Status: domain.TransactionStatusNeedsReview, IsActive: true,
	})

	if _, err := f.service.AcceptSuggestion(3, categorized.ID); !errors.Is(err, domain.ErrNotReviewable) {
		t.Errorf("Expected ErrNotReviewable outside review status, got %v", err)
	}
	if _, err := f.service.AcceptSuggestion(3, noSuggestion.ID); !errors.Is(err, domain.ErrNoSuggestion) {
		t.Errorf("Expected ErrNoSuggestion, got %v", err)
	}
	if _, err := f.service.AcceptSuggestion(3, 99); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := f.service.AcceptSuggestion(7, categorized.ID); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound across departments, got %v", err)
	}
}

func TestAssignCategory(t *testing.T) {
	f := newReviewFixture()
	category := f.categories.AddCategory(&domain.BudgetCategory{DepartmentID: 3, Name: "Suppliers"})
	tx := f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID:    3,
		ExternalID:      "p-1",
		PaymentType:     domain.PaymentTypePayment,
		Amount:          decimal.NewFromInt(100),
		TransactionDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Status:          domain.TransactionStatusNew,
		IsActive:        true,
	})

	updated, err := f.service.AssignCategory(3, tx.ID, category.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if updated.Status != domain.TransactionStatusCategorized {
		t.Errorf("Expected categorized status, got %s", updated.Status)
	}
	if updated.CategoryID == nil || *updated.CategoryID != category.ID {
		t.Errorf("Expected category %d, got %v", category.ID, updated.CategoryID)
	}
	if updated.Confidence == nil || *updated.Confidence != 1.0 {
		t.Errorf("Expected manual confidence 1.0, got %v", updated.Confidence)
	}
}

func TestAssignCategory_InvalidatesOldAndNewCategory(t *testing.T) {
	f := newReviewFixture()
	oldCat := f.categories.AddCategory(&domain.BudgetCategory{DepartmentID: 3, Name: "Old"})
	newCat := f.categories.AddCategory(&domain.BudgetCategory{DepartmentID: 3, Name: "New"})
	tx := f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID:    3,
		ExternalID:      "p-1",
		PaymentType:     domain.PaymentTypePayment,
		Amount:          decimal.NewFromInt(100),
		TransactionDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		CategoryID:      &oldCat.ID,
		Status:          domain.TransactionStatusCategorized,
		IsActive:        true,
	})

	if _, err := f.service.AssignCategory(3, tx.ID, newCat.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(f.invalidator.filters) != 2 {
		t.Fatalf("Expected invalidations for both categories, got %v", f.invalidator.filters)
	}
	seen := make(map[int32]bool)
	for _, filter := range f.invalidator.filters {
		if filter.CategoryID != nil {
			seen[*filter.CategoryID] = true
		}
	}
	if !seen[oldCat.ID] || !seen[newCat.ID] {
		t.Errorf("Expected old and new category invalidated, got %v", f.invalidator.filters)
	}
}

func TestAssignCategory_UnknownCategory(t *testing.T) {
	f := newReviewFixture()
	tx := f.transactions.AddTransaction(&domain.Transaction{
		DepartmentID: 3, ExternalID: "p-1", PaymentType: domain.PaymentTypePayment,
		Amount: decimal.NewFromInt(100), Status: domain.TransactionStatusNew, IsActive: true,
	})

	if _, err := f.service.AssignCategory(3, tx.ID, 99); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Errorf("Expected ErrCategoryNotFound, got %v", err)
	}
	if len(f.invalidator.filters) != 0 {
		t.Errorf("Expected no invalidation on failure, got %v", f.invalidator.filters)
	}
}
