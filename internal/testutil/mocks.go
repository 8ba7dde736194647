package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

// MockTransactionRepository is an in-memory implementation of
// domain.TransactionRepository
type MockTransactionRepository struct {
	Transactions map[int32]*domain.Transaction
	NextID       int32
	CreateFn     func(tx *domain.Transaction) (*domain.Transaction, error)
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		Transactions: make(map[int32]*domain.Transaction),
		NextID:       1,
	}
}

// AddTransaction adds a transaction to the mock repository (helper for tests)
func (m *MockTransactionRepository) AddTransaction(tx *domain.Transaction) *domain.Transaction {
	if tx.ID == 0 {
		tx.ID = m.NextID
		m.NextID++
	} else if tx.ID >= m.NextID {
		m.NextID = tx.ID + 1
	}
	stored := *tx
	m.Transactions[tx.ID] = &stored
	return tx
}

// Create creates a new transaction, enforcing the natural-key unique index
func (m *MockTransactionRepository) Create(tx *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateFn != nil {
		return m.CreateFn(tx)
	}
	key := tx.NaturalKey()
	for _, existing := range m.Transactions {
		if existing.IsActive && existing.NaturalKey() == key {
			return nil, domain.ErrAlreadyExists
		}
	}
	created := *tx
	created.ID = m.NextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.NextID++
	m.Transactions[created.ID] = &created
	result := created
	return &result, nil
}

// GetByID retrieves a transaction by ID within a department
func (m *MockTransactionRepository) GetByID(departmentID int32, id int32) (*domain.Transaction, error) {
	tx, ok := m.Transactions[id]
	if !ok || tx.DepartmentID != departmentID || !tx.IsActive {
		return nil, domain.ErrTransactionNotFound
	}
	result := *tx
	return &result, nil
}

// GetByNaturalKey retrieves a transaction by its import natural key
func (m *MockTransactionRepository) GetByNaturalKey(key domain.NaturalKey) (*domain.Transaction, error) {
	for _, tx := range m.Transactions {
		if tx.IsActive && tx.NaturalKey() == key {
			result := *tx
			return &result, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// ListBySourceID retrieves all active rows sharing a source external id
func (m *MockTransactionRepository) ListBySourceID(departmentID int32, externalID string, paymentType domain.PaymentType) ([]*domain.Transaction, error) {
	var matches []*domain.Transaction
	for _, tx := range m.Transactions {
		if tx.IsActive && tx.DepartmentID == departmentID && tx.ExternalID == externalID && tx.PaymentType == paymentType {
			result := *tx
			matches = append(matches, &result)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// UpdateSource updates the source-mutable fields of a transaction
func (m *MockTransactionRepository) UpdateSource(departmentID int32, id int32, data *domain.UpdateSourceData) (*domain.Transaction, error) {
	tx, ok := m.Transactions[id]
	if !ok || tx.DepartmentID != departmentID || !tx.IsActive {
		return nil, domain.ErrTransactionNotFound
	}
	tx.Amount = data.Amount
	tx.PaymentPurpose = data.PaymentPurpose
	tx.OperationLabel = data.OperationLabel
	tx.CounterpartyName = data.CounterpartyName
	tx.CounterpartyINN = data.CounterpartyINN
	tx.UpdatedAt = time.Now()
	result := *tx
	return &result, nil
}

// UpdateClassification updates category assignment, confidence and status
func (m *MockTransactionRepository) UpdateClassification(departmentID int32, id int32, data *domain.ClassificationData) (*domain.Transaction, error) {
	tx, ok := m.Transactions[id]
	if !ok || tx.DepartmentID != departmentID || !tx.IsActive {
		return nil, domain.ErrTransactionNotFound
	}
	tx.CategoryID = data.CategoryID
	tx.SuggestedCategoryID = data.SuggestedCategoryID
	tx.Confidence = data.Confidence
	tx.Status = data.Status
	tx.UpdatedAt = time.Now()
	result := *tx
	return &result, nil
}

// AssignCategoryWhereUncategorized applies a default category to uncategorized
// NEW records in the date range, pinning confidence to 1.0
func (m *MockTransactionRepository) AssignCategoryWhereUncategorized(departmentID int32, dateFrom, dateTo time.Time, categoryID int32) (int64, error) {
	var assigned int64
	for _, tx := range m.Transactions {
		if !tx.IsActive || tx.DepartmentID != departmentID || tx.CategoryID != nil || tx.Status != domain.TransactionStatusNew {
			continue
		}
		if tx.TransactionDate.Before(dateFrom) || tx.TransactionDate.After(dateTo) {
			continue
		}
		id := categoryID
		confidence := 1.0
		tx.CategoryID = &id
		tx.Confidence = &confidence
		tx.Status = domain.TransactionStatusCategorized
		assigned++
	}
	return assigned, nil
}

// CounterpartyHistoryByINN returns categorized counts per category for a tax id
func (m *MockTransactionRepository) CounterpartyHistoryByINN(departmentID int32, inn string) ([]domain.CounterpartyCategoryStat, error) {
	return m.history(departmentID, func(tx *domain.Transaction) bool {
		return tx.CounterpartyINN != nil && *tx.CounterpartyINN == inn
	}), nil
}

// CounterpartyHistoryByName returns categorized counts per category for a
// normalized counterparty name
func (m *MockTransactionRepository) CounterpartyHistoryByName(departmentID int32, normalizedName string) ([]domain.CounterpartyCategoryStat, error) {
	return m.history(departmentID, func(tx *domain.Transaction) bool {
		return tx.CounterpartyName != nil && domain.NormalizeCounterpartyName(*tx.CounterpartyName) == normalizedName
	}), nil
}

func (m *MockTransactionRepository) history(departmentID int32, match func(*domain.Transaction) bool) []domain.CounterpartyCategoryStat {
	counts := make(map[int32]int64)
	for _, tx := range m.Transactions {
		if !tx.IsActive || tx.DepartmentID != departmentID || tx.Status != domain.TransactionStatusCategorized || tx.CategoryID == nil {
			continue
		}
		if match(tx) {
			counts[*tx.CategoryID]++
		}
	}
	stats := make([]domain.CounterpartyCategoryStat, 0, len(counts))
	for categoryID, count := range counts {
		stats = append(stats, domain.CounterpartyCategoryStat{CategoryID: categoryID, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].CategoryID < stats[j].CategoryID
	})
	return stats
}

// SummarizeCategoryYear computes the yearly rollup for one category
func (m *MockTransactionRepository) SummarizeCategoryYear(departmentID int32, categoryID int32, year int) (*domain.CategoryRollup, error) {
	rollup := &domain.CategoryRollup{
		Total:   decimal.Zero,
		ByMonth: make(map[time.Month]decimal.Decimal),
	}
	for _, tx := range m.Transactions {
		if !tx.IsActive || tx.DepartmentID != departmentID || tx.CategoryID == nil || *tx.CategoryID != categoryID {
			continue
		}
		if tx.TransactionDate.Year() != year {
			continue
		}
		amount := tx.Amount
		if tx.PaymentType == domain.PaymentTypeReceipt {
			amount = amount.Neg()
		}
		month := tx.TransactionDate.Month()
		rollup.ByMonth[month] = rollup.ByMonth[month].Add(amount)
		rollup.Total = rollup.Total.Add(amount)
	}
	return rollup, nil
}

// SoftDelete marks a transaction inactive
func (m *MockTransactionRepository) SoftDelete(departmentID int32, id int32) error {
	tx, ok := m.Transactions[id]
	if !ok || tx.DepartmentID != departmentID || !tx.IsActive {
		return domain.ErrTransactionNotFound
	}
	tx.IsActive = false
	return nil
}

// ActiveCount returns the number of active rows (helper for tests)
func (m *MockTransactionRepository) ActiveCount() int {
	count := 0
	for _, tx := range m.Transactions {
		if tx.IsActive {
			count++
		}
	}
	return count
}

// MockOperationMappingRepository is an in-memory implementation of
// domain.OperationMappingRepository
type MockOperationMappingRepository struct {
	Mappings map[int32]*domain.OperationMapping
	NextID   int32
}

// NewMockOperationMappingRepository creates a new MockOperationMappingRepository
func NewMockOperationMappingRepository() *MockOperationMappingRepository {
	return &MockOperationMappingRepository{
		Mappings: make(map[int32]*domain.OperationMapping),
		NextID:   1,
	}
}

// AddMapping adds a mapping to the mock repository (helper for tests)
func (m *MockOperationMappingRepository) AddMapping(mapping *domain.OperationMapping) *domain.OperationMapping {
	if mapping.ID == 0 {
		mapping.ID = m.NextID
		m.NextID++
	} else if mapping.ID >= m.NextID {
		m.NextID = mapping.ID + 1
	}
	if mapping.UpdatedAt.IsZero() {
		mapping.UpdatedAt = time.Now()
	}
	stored := *mapping
	m.Mappings[mapping.ID] = &stored
	return mapping
}

// Create creates a new mapping
func (m *MockOperationMappingRepository) Create(mapping *domain.OperationMapping) (*domain.OperationMapping, error) {
	created := *mapping
	created.ID = m.NextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.NextID++
	m.Mappings[created.ID] = &created
	result := created
	return &result, nil
}

// GetByID retrieves a mapping by ID within a department
func (m *MockOperationMappingRepository) GetByID(departmentID int32, id int32) (*domain.OperationMapping, error) {
	mapping, ok := m.Mappings[id]
	if !ok || mapping.DepartmentID != departmentID {
		return nil, domain.ErrMappingNotFound
	}
	result := *mapping
	return &result, nil
}

// Resolve returns the authoritative active mapping for label+department:
// highest priority, then highest confidence, then most recently updated
func (m *MockOperationMappingRepository) Resolve(operationLabel string, departmentID int32) (*domain.OperationMapping, error) {
	matches, _ := m.ListActive(operationLabel, departmentID)
	if len(matches) == 0 {
		return nil, domain.ErrMappingNotFound
	}
	result := *matches[0]
	return &result, nil
}

// ListActive returns all active mappings for label+department in resolution order
func (m *MockOperationMappingRepository) ListActive(operationLabel string, departmentID int32) ([]*domain.OperationMapping, error) {
	var matches []*domain.OperationMapping
	for _, mapping := range m.Mappings {
		if mapping.IsActive && mapping.OperationLabel == operationLabel && mapping.DepartmentID == departmentID {
			result := *mapping
			matches = append(matches, &result)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return matches, nil
}

// Deactivate marks a mapping inactive
func (m *MockOperationMappingRepository) Deactivate(departmentID int32, id int32) error {
	mapping, ok := m.Mappings[id]
	if !ok || mapping.DepartmentID != departmentID || !mapping.IsActive {
		return domain.ErrMappingNotFound
	}
	mapping.IsActive = false
	mapping.UpdatedAt = time.Now()
	return nil
}

// MockBudgetCategoryRepository is an in-memory implementation of
// domain.BudgetCategoryRepository
type MockBudgetCategoryRepository struct {
	Categories map[int32]*domain.BudgetCategory
	NextID     int32
}

// NewMockBudgetCategoryRepository creates a new MockBudgetCategoryRepository
func NewMockBudgetCategoryRepository() *MockBudgetCategoryRepository {
	return &MockBudgetCategoryRepository{
		Categories: make(map[int32]*domain.BudgetCategory),
		NextID:     1,
	}
}

// AddCategory adds a category to the mock repository (helper for tests)
func (m *MockBudgetCategoryRepository) AddCategory(category *domain.BudgetCategory) *domain.BudgetCategory {
	if category.ID == 0 {
		category.ID = m.NextID
		m.NextID++
	} else if category.ID >= m.NextID {
		m.NextID = category.ID + 1
	}
	stored := *category
	m.Categories[category.ID] = &stored
	return category
}

// Create creates a new category
func (m *MockBudgetCategoryRepository) Create(category *domain.BudgetCategory) (*domain.BudgetCategory, error) {
	created := *category
	created.ID = m.NextID
	m.NextID++
	m.Categories[created.ID] = &created
	result := created
	return &result, nil
}

// GetByID retrieves a category by ID within a department
func (m *MockBudgetCategoryRepository) GetByID(departmentID int32, id int32) (*domain.BudgetCategory, error) {
	category, ok := m.Categories[id]
	if !ok || category.DepartmentID != departmentID || category.DeletedAt != nil {
		return nil, domain.ErrCategoryNotFound
	}
	result := *category
	return &result, nil
}

// GetByName retrieves a category by name within a department
func (m *MockBudgetCategoryRepository) GetByName(departmentID int32, name string) (*domain.BudgetCategory, error) {
	for _, category := range m.Categories {
		if category.DepartmentID == departmentID && category.Name == name && category.DeletedAt == nil {
			result := *category
			return &result, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

// GetAllByDepartment retrieves all categories for a department
func (m *MockBudgetCategoryRepository) GetAllByDepartment(departmentID int32) ([]*domain.BudgetCategory, error) {
	var categories []*domain.BudgetCategory
	for _, category := range m.Categories {
		if category.DepartmentID == departmentID && category.DeletedAt == nil {
			result := *category
			categories = append(categories, &result)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// SoftDelete marks a category as deleted
func (m *MockBudgetCategoryRepository) SoftDelete(departmentID int32, id int32) error {
	category, ok := m.Categories[id]
	if !ok || category.DepartmentID != departmentID || category.DeletedAt != nil {
		return domain.ErrCategoryNotFound
	}
	now := time.Now()
	category.DeletedAt = &now
	return nil
}

// MockDepartmentRepository is an in-memory implementation of
// domain.DepartmentRepository
type MockDepartmentRepository struct {
	Departments map[int32]*domain.Department
}

// NewMockDepartmentRepository creates a new MockDepartmentRepository
func NewMockDepartmentRepository() *MockDepartmentRepository {
	return &MockDepartmentRepository{Departments: make(map[int32]*domain.Department)}
}

// AddDepartment adds a department to the mock repository (helper for tests)
func (m *MockDepartmentRepository) AddDepartment(department *domain.Department) *domain.Department {
	stored := *department
	m.Departments[department.ID] = &stored
	return department
}

// GetByID retrieves a department by ID
func (m *MockDepartmentRepository) GetByID(id int32) (*domain.Department, error) {
	department, ok := m.Departments[id]
	if !ok {
		return nil, domain.ErrDepartmentNotFound
	}
	result := *department
	return &result, nil
}

// MockLedgerClient is an in-memory extraction client serving canned records
// page by page
type MockLedgerClient struct {
	Receipts     []domain.RawRecord
	Payments     []domain.RawRecord
	ReceiptCalls int
	PaymentCalls int
	FetchErr     error
	// NeverShort makes every page full by repeating records, simulating an
	// extraction client that never signals end-of-data.
	NeverShort bool
}

// NewMockLedgerClient creates a new MockLedgerClient
func NewMockLedgerClient() *MockLedgerClient {
	return &MockLedgerClient{}
}

// FetchReceipts returns one page of canned receipt records
func (m *MockLedgerClient) FetchReceipts(_ context.Context, _, _ time.Time, offset, limit int) ([]domain.RawRecord, error) {
	m.ReceiptCalls++
	return m.page(m.Receipts, offset, limit)
}

// FetchPayments returns one page of canned payment records
func (m *MockLedgerClient) FetchPayments(_ context.Context, _, _ time.Time, offset, limit int) ([]domain.RawRecord, error) {
	m.PaymentCalls++
	return m.page(m.Payments, offset, limit)
}

func (m *MockLedgerClient) page(records []domain.RawRecord, offset, limit int) ([]domain.RawRecord, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.NeverShort {
		page := make([]domain.RawRecord, limit)
		for i := range page {
			page[i] = records[i%len(records)]
		}
		return page, nil
	}
	if offset >= len(records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end], nil
}
