package service

import (
	"github.com/Roughriver74/west-buget-it-sub003/internal/cache"
	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

// ReportService serves budget rollups through the aggregate cache
type ReportService struct {
	transactionRepo domain.TransactionRepository
	categoryRepo    domain.BudgetCategoryRepository
	aggregates      *cache.AggregateCache
}

// NewReportService creates a new ReportService
func NewReportService(transactionRepo domain.TransactionRepository, categoryRepo domain.BudgetCategoryRepository, aggregates *cache.AggregateCache) *ReportService {
	return &ReportService{
		transactionRepo: transactionRepo,
		categoryRepo:    categoryRepo,
		aggregates:      aggregates,
	}
}

// CategorySummary returns the cached (category, year, department) rollup,
// computing it from storage on a cache miss.
func (s *ReportService) CategorySummary(departmentID int32, categoryID int32, year int) (*cache.CategorySummary, error) {
	category, err := s.categoryRepo.GetByID(departmentID, categoryID)
	if err != nil {
		return nil, err
	}

	key := cache.Key{CategoryID: categoryID, Year: year, DepartmentID: departmentID}
	return s.aggregates.GetOrCompute(key, func() (*cache.CategorySummary, error) {
		rollup, err := s.transactionRepo.SummarizeCategoryYear(departmentID, categoryID, year)
		if err != nil {
			return nil, err
		}
		summary := &cache.CategorySummary{
			Total:   rollup.Total,
			ByMonth: rollup.ByMonth,
			Capex:   decimal.Zero,
			Opex:    decimal.Zero,
		}
		switch category.Kind {
		case domain.CategoryKindCapex:
			summary.Capex = rollup.Total
		default:
			summary.Opex = rollup.Total
		}
		return summary, nil
	})
}
