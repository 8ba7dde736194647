package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/cache"
	"github.com/Roughriver74/west-buget-it-sub003/internal/classify"
	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/Roughriver74/west-buget-it-sub003/internal/testutil"
	"github.com/shopspring/decimal"
)

// stubClassifier returns canned decisions keyed by payment purpose; purposes
// without an entry abstain.
type stubClassifier struct {
	decisions map[string]*classify.Decision
	calls     int
}

func (s *stubClassifier) Classify(_ context.Context, input classify.Input) (*classify.Decision, error) {
	s.calls++
	if decision, ok := s.decisions[input.PaymentPurpose]; ok {
		copied := *decision
		return &copied, nil
	}
	return &classify.Decision{Confidence: 0}, nil
}

// recordingInvalidator captures invalidation filters instead of dropping cache
// entries.
type recordingInvalidator struct {
	filters []cache.Filter
}

func (r *recordingInvalidator) Invalidate(filter cache.Filter) int {
	r.filters = append(r.filters, filter)
	return 1
}

type syncFixture struct {
	client       *testutil.MockLedgerClient
	transactions *testutil.MockTransactionRepository
	departments  *testutil.MockDepartmentRepository
	classifier   *stubClassifier
	invalidator  *recordingInvalidator
	service      *SyncService
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		client:       testutil.NewMockLedgerClient(),
		transactions: testutil.NewMockTransactionRepository(),
		departments:  testutil.NewMockDepartmentRepository(),
		classifier:   &stubClassifier{decisions: make(map[string]*classify.Decision)},
		invalidator:  &recordingInvalidator{},
	}
	f.departments.AddDepartment(&domain.Department{ID: 3, Name: "IT"})
	f.service = NewSyncService(
		f.client, f.transactions, f.departments, f.classifier, f.invalidator, 0.9, 0)
	return f
}

func (f *syncFixture) run(t *testing.T, params RunParams) *domain.SyncRunResult {
	t.Helper()
	result, err := f.service.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}
	return result
}

func defaultParams() RunParams {
	return RunParams{
		DateFrom:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateTo:       time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		DepartmentID: 3,
		AutoClassify: true,
	}
}

func rawRecord(externalID, amount, date string, paymentType domain.PaymentType, purpose string) domain.RawRecord {
	value := decimal.RequireFromString(amount)
	return domain.RawRecord{
		ExternalID:     externalID,
		Date:           date,
		Amount:         &value,
		PaymentType:    paymentType,
		PaymentPurpose: purpose,
	}
}

func TestRun_ImportsReceiptsAndPayments(t *testing.T) {
	f := newSyncFixture()
	f.client.Receipts = []domain.RawRecord{
		rawRecord("r-1", "1500.00", "2025-06-02", domain.PaymentTypeReceipt, "оплата от клиента"),
		rawRecord("r-2", "2000.00", "2025-06-03", domain.PaymentTypeReceipt, "оплата от клиента"),
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "канцелярия"),
	}

	result := f.run(t, defaultParams())

	if result.Fetched != 3 || result.Processed != 3 {
		t.Errorf("Expected 3 fetched and processed, got %d/%d", result.Fetched, result.Processed)
	}
	if result.Created != 3 {
		t.Errorf("Expected 3 created, got %d", result.Created)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", result.Errors)
	}
	if f.transactions.ActiveCount() != 3 {
		t.Errorf("Expected 3 stored transactions, got %d", f.transactions.ActiveCount())
	}
}

func TestRun_IdempotentReimport(t *testing.T) {
	f := newSyncFixture()
	f.client.Receipts = []domain.RawRecord{
		rawRecord("r-1", "1500.00", "2025-06-02", domain.PaymentTypeReceipt, "оплата от клиента"),
		rawRecord("r-2", "2000.00", "2025-06-03", domain.PaymentTypeReceipt, "оплата от клиента"),
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "канцелярия"),
	}

	first := f.run(t, defaultParams())
	second := f.run(t, defaultParams())

	if first.Created != 3 {
		t.Fatalf("Expected 3 created on first run, got %d", first.Created)
	}
	if second.Created != 0 {
		t.Errorf("Expected 0 created on re-import, got %d", second.Created)
	}
	if second.Skipped != 3 {
		t.Errorf("Expected 3 skipped on re-import, got %d", second.Skipped)
	}
	if second.Processed != 3 {
		t.Errorf("Expected 3 processed on re-import, got %d", second.Processed)
	}
	if f.transactions.ActiveCount() != 3 {
		t.Errorf("Expected 3 stored transactions after both runs, got %d", f.transactions.ActiveCount())
	}
}

func TestRun_ChangedAmountUpdatesExistingRow(t *testing.T) {
	f := newSyncFixture()
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "канцелярия"),
	}
	f.run(t, defaultParams())

	// The source corrected the amount; the record must resolve to the same row.
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "550.00", "2025-06-05", domain.PaymentTypePayment, "канцелярия"),
	}
	second := f.run(t, defaultParams())

	if second.Created != 0 {
		t.Errorf("Expected 0 created, got %d", second.Created)
	}
	if second.Updated != 1 {
		t.Errorf("Expected 1 updated, got %d", second.Updated)
	}
	if f.transactions.ActiveCount() != 1 {
		t.Fatalf("Expected a single stored row, got %d", f.transactions.ActiveCount())
	}
	for _, tx := range f.transactions.Transactions {
		if !tx.Amount.Equal(decimal.RequireFromString("550.00")) {
			t.Errorf("Expected stored amount 550.00, got %s", tx.Amount)
		}
	}
}

func TestRun_ChangedPurposeKeepsCategory(t *testing.T) {
	f := newSyncFixture()
	categoryID := int32(5)
	f.classifier.decisions["оплата поставщику"] = &classify.Decision{
		CategoryID: &categoryID,
		Confidence: 0.95,
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "оплата поставщику"),
	}
	f.run(t, defaultParams())

	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "оплата поставщику, счет 77"),
	}
	second := f.run(t, defaultParams())

	if second.Updated != 1 {
		t.Fatalf("Expected 1 updated, got %d", second.Updated)
	}
	for _, tx := range f.transactions.Transactions {
		if tx.CategoryID == nil || *tx.CategoryID != categoryID {
			t.Errorf("Expected category %d preserved through the update, got %v", categoryID, tx.CategoryID)
		}
		if tx.PaymentPurpose != "оплата поставщику, счет 77" {
			t.Errorf("Expected purpose refreshed from source, got %q", tx.PaymentPurpose)
		}
	}
}

func TestRun_MalformedRecordDoesNotAbortRun(t *testing.T) {
	f := newSyncFixture()
	badDate := rawRecord("p-bad", "100.00", "05.06.2025", domain.PaymentTypePayment, "плохая дата")
	noID := rawRecord("", "100.00", "2025-06-05", domain.PaymentTypePayment, "без идентификатора")
	negative := rawRecord("p-neg", "-100.00", "2025-06-05", domain.PaymentTypePayment, "отрицательная сумма")
	missingAmount := rawRecord("p-noamt", "1.00", "2025-06-05", domain.PaymentTypePayment, "без суммы")
	missingAmount.Amount = nil
	undecodable := domain.RawRecord{
		ExternalID:  "p-raw",
		PaymentType: domain.PaymentTypePayment,
		DecodeError: errors.New("json: cannot unmarshal bool into amount"),
	}
	good := rawRecord("p-good", "100.00", "2025-06-05", domain.PaymentTypePayment, "нормальная запись")

	f.client.Payments = []domain.RawRecord{badDate, noID, negative, missingAmount, undecodable, good}

	result := f.run(t, defaultParams())

	if result.Processed != 6 {
		t.Errorf("Expected all 6 records processed, got %d", result.Processed)
	}
	if result.Created != 1 {
		t.Errorf("Expected only the valid record created, got %d", result.Created)
	}
	if len(result.Errors) != 5 {
		t.Fatalf("Expected 5 per-record errors, got %v", result.Errors)
	}
	for _, msg := range []string{"p-bad", "p-neg", "p-noamt", "p-raw"} {
		found := false
		for _, err := range result.Errors {
			if strings.Contains(err, msg) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected an error mentioning %q, got %v", msg, result.Errors)
		}
	}
}

func TestRun_FetchFailureAbortsRun(t *testing.T) {
	f := newSyncFixture()
	f.client.FetchErr = errors.New("ledger authentication failed")

	_, err := f.service.Run(context.Background(), defaultParams())
	if err == nil {
		t.Fatal("Expected a connectivity failure to abort the run")
	}
	if !strings.Contains(err.Error(), "ledger authentication failed") {
		t.Errorf("Expected the underlying cause in the error, got %v", err)
	}
}

func TestRun_InvalidDateRange(t *testing.T) {
	f := newSyncFixture()
	params := defaultParams()
	params.DateFrom, params.DateTo = params.DateTo, params.DateFrom

	_, err := f.service.Run(context.Background(), params)
	if !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Errorf("Expected ErrInvalidDateRange, got %v", err)
	}
}

func TestRun_UnknownDepartment(t *testing.T) {
	f := newSyncFixture()
	params := defaultParams()
	params.DepartmentID = 99

	_, err := f.service.Run(context.Background(), params)
	if !errors.Is(err, domain.ErrDepartmentNotFound) {
		t.Errorf("Expected ErrDepartmentNotFound, got %v", err)
	}
}

func TestRun_ThresholdSplitsConfidentAndSuggested(t *testing.T) {
	f := newSyncFixture()
	confident := int32(5)
	weak := int32(6)
	f.classifier.decisions["уверенная классификация"] = &classify.Decision{
		CategoryID: &confident,
		Confidence: 0.95,
	}
	f.classifier.decisions["слабая классификация"] = &classify.Decision{
		CategoryID: &weak,
		Confidence: 0.6,
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "уверенная классификация"),
		rawRecord("p-2", "200.00", "2025-06-05", domain.PaymentTypePayment, "слабая классификация"),
		rawRecord("p-3", "300.00", "2025-06-05", domain.PaymentTypePayment, "никакого совпадения"),
	}

	result := f.run(t, defaultParams())

	if result.AutoCategorized != 1 {
		t.Errorf("Expected 1 auto-categorized, got %d", result.AutoCategorized)
	}

	byExternal := make(map[string]*domain.Transaction)
	for _, tx := range f.transactions.Transactions {
		byExternal[tx.ExternalID] = tx
	}

	auto := byExternal["p-1"]
	if auto.Status != domain.TransactionStatusCategorized {
		t.Errorf("Expected categorized status, got %s", auto.Status)
	}
	if auto.CategoryID == nil || *auto.CategoryID != confident {
		t.Errorf("Expected category %d, got %v", confident, auto.CategoryID)
	}
	if auto.Confidence == nil || *auto.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %v", auto.Confidence)
	}

	review := byExternal["p-2"]
	if review.Status != domain.TransactionStatusNeedsReview {
		t.Errorf("Expected needs_review status, got %s", review.Status)
	}
	if review.CategoryID != nil {
		t.Errorf("Expected no assigned category below threshold, got %v", *review.CategoryID)
	}
	if review.SuggestedCategoryID == nil || *review.SuggestedCategoryID != weak {
		t.Errorf("Expected suggested category %d, got %v", weak, review.SuggestedCategoryID)
	}

	fresh := byExternal["p-3"]
	if fresh.Status != domain.TransactionStatusNew {
		t.Errorf("Expected new status for an abstention, got %s", fresh.Status)
	}
	if fresh.CategoryID != nil || fresh.SuggestedCategoryID != nil {
		t.Errorf("Expected no category data on abstention, got %v/%v", fresh.CategoryID, fresh.SuggestedCategoryID)
	}
}

func TestRun_AutoClassifyDisabled(t *testing.T) {
	f := newSyncFixture()
	categoryID := int32(5)
	f.classifier.decisions["оплата поставщику"] = &classify.Decision{
		CategoryID: &categoryID,
		Confidence: 0.95,
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "оплата поставщику"),
	}

	params := defaultParams()
	params.AutoClassify = false
	result := f.run(t, params)

	if result.AutoCategorized != 0 {
		t.Errorf("Expected no auto-categorization, got %d", result.AutoCategorized)
	}
	if f.classifier.calls != 0 {
		t.Errorf("Expected classifier untouched, got %d calls", f.classifier.calls)
	}
	for _, tx := range f.transactions.Transactions {
		if tx.Status != domain.TransactionStatusNew {
			t.Errorf("Expected new status, got %s", tx.Status)
		}
	}
}

func TestRun_DuplicateRaceRetriesAsUpdate(t *testing.T) {
	f := newSyncFixture()
	record := rawRecord("p-1", "500.00", "2025-06-05", domain.PaymentTypePayment, "канцелярия")
	f.client.Payments = []domain.RawRecord{record}

	// Simulate a concurrent run winning the insert between the natural-key
	// lookup and the create.
	f.transactions.CreateFn = func(tx *domain.Transaction) (*domain.Transaction, error) {
		f.transactions.CreateFn = nil
		concurrent := *tx
		f.transactions.AddTransaction(&concurrent)
		return nil, domain.ErrAlreadyExists
	}

	result := f.run(t, defaultParams())

	if len(result.Errors) != 0 {
		t.Fatalf("Expected the race to be absorbed, got errors %v", result.Errors)
	}
	if result.Created != 0 {
		t.Errorf("Expected 0 created after losing the race, got %d", result.Created)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected the retried record skipped as unchanged, got %d skipped", result.Skipped)
	}
	if f.transactions.ActiveCount() != 1 {
		t.Errorf("Expected a single stored row, got %d", f.transactions.ActiveCount())
	}
}

func TestRun_PageCeilingStopsPagination(t *testing.T) {
	f := newSyncFixture()
	f.service = NewSyncService(f.client, f.transactions, f.departments, f.classifier, f.invalidator, 0.9, 3)
	f.client.NeverShort = true
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "зацикленная страница"),
	}
	f.client.Receipts = []domain.RawRecord{
		rawRecord("r-1", "100.00", "2025-06-05", domain.PaymentTypeReceipt, "зацикленная страница"),
	}

	params := defaultParams()
	params.BatchSize = 2
	result := f.run(t, params)

	if f.client.ReceiptCalls != 3 || f.client.PaymentCalls != 3 {
		t.Errorf("Expected 3 pages per side, got %d/%d", f.client.ReceiptCalls, f.client.PaymentCalls)
	}
	if result.Fetched != 12 {
		t.Errorf("Expected 12 fetched (3 pages of 2, both sides), got %d", result.Fetched)
	}
}

func TestRun_DefaultCategoryAppliedOnOptIn(t *testing.T) {
	f := newSyncFixture()
	defaultCategory := int32(9)
	f.departments.AddDepartment(&domain.Department{ID: 3, Name: "IT", DefaultCategoryID: &defaultCategory})
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "никакого совпадения"),
	}

	params := defaultParams()
	params.ApplyDefaultCategory = true
	result := f.run(t, params)

	if result.DefaultAssigned != 1 {
		t.Fatalf("Expected 1 default assignment, got %d", result.DefaultAssigned)
	}
	for _, tx := range f.transactions.Transactions {
		if tx.CategoryID == nil || *tx.CategoryID != defaultCategory {
			t.Errorf("Expected default category %d, got %v", defaultCategory, tx.CategoryID)
		}
		if tx.Status != domain.TransactionStatusCategorized {
			t.Errorf("Expected categorized status, got %s", tx.Status)
		}
		if tx.Confidence == nil || *tx.Confidence != 1.0 {
			t.Errorf("Expected default assignment to pin confidence 1.0, got %v", tx.Confidence)
		}
	}

	found := false
	for _, filter := range f.invalidator.filters {
		if filter.CategoryID != nil && *filter.CategoryID == defaultCategory && filter.Year == nil {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a category-wide invalidation for the default category, got %v", f.invalidator.filters)
	}
}

func TestRun_DefaultCategoryNotAppliedWithoutOptIn(t *testing.T) {
	f := newSyncFixture()
	defaultCategory := int32(9)
	f.departments.AddDepartment(&domain.Department{ID: 3, Name: "IT", DefaultCategoryID: &defaultCategory})
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "никакого совпадения"),
	}

	result := f.run(t, defaultParams())

	if result.DefaultAssigned != 0 {
		t.Errorf("Expected no default assignment without opt-in, got %d", result.DefaultAssigned)
	}
	for _, tx := range f.transactions.Transactions {
		if tx.CategoryID != nil {
			t.Errorf("Expected record left uncategorized, got %v", *tx.CategoryID)
		}
	}
}

func TestRun_InvalidatesAffectedAggregates(t *testing.T) {
	f := newSyncFixture()
	categoryID := int32(5)
	f.classifier.decisions["оплата поставщику"] = &classify.Decision{
		CategoryID: &categoryID,
		Confidence: 0.95,
	}
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "оплата поставщику"),
	}

	f.run(t, defaultParams())

	found := false
	for _, filter := range f.invalidator.filters {
		if filter.CategoryID != nil && *filter.CategoryID == categoryID &&
			filter.Year != nil && *filter.Year == 2025 &&
			filter.DepartmentID != nil && *filter.DepartmentID == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an exact invalidation for the affected aggregate, got %v", f.invalidator.filters)
	}
}

func TestRun_NoInvalidationForUncategorizedRecords(t *testing.T) {
	f := newSyncFixture()
	f.client.Payments = []domain.RawRecord{
		rawRecord("p-1", "100.00", "2025-06-05", domain.PaymentTypePayment, "никакого совпадения"),
	}

	f.run(t, defaultParams())

	if len(f.invalidator.filters) != 0 {
		t.Errorf("Expected no invalidations for uncategorized imports, got %v", f.invalidator.filters)
	}
}
