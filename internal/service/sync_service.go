package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/cache"
	"github.com/Roughriver74/west-buget-it-sub003/internal/classify"
	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBatchSize is the page size used when the caller does not set one.
	DefaultBatchSize = 100
	// DefaultMaxPages bounds pagination against an extraction client that
	// never signals end-of-data.
	DefaultMaxPages = 1000

	ledgerDateFormat = "2006-01-02"
)

// ExtractionClient is the contract the external ledger must satisfy. A short
// page (fewer records than the requested limit) signals exhaustion.
type ExtractionClient interface {
	FetchReceipts(ctx context.Context, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error)
	FetchPayments(ctx context.Context, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error)
}

// TransactionClassifier decides a category for a transaction's attributes.
type TransactionClassifier interface {
	Classify(ctx context.Context, input classify.Input) (*classify.Decision, error)
}

// AggregateInvalidator drops cached aggregates whose underlying records changed.
type AggregateInvalidator interface {
	Invalidate(filter cache.Filter) int
}

// SyncService drives import runs against the external ledger
type SyncService struct {
	client          ExtractionClient
	transactionRepo domain.TransactionRepository
	departmentRepo  domain.DepartmentRepository
	classifier      TransactionClassifier
	aggregates      AggregateInvalidator

	autoAssignThreshold float64
	maxPages            int
}

// NewSyncService creates a new SyncService
func NewSyncService(
	client ExtractionClient,
	transactionRepo domain.TransactionRepository,
	departmentRepo domain.DepartmentRepository,
	classifier TransactionClassifier,
	aggregates AggregateInvalidator,
	autoAssignThreshold float64,
	maxPages int,
) *SyncService {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &SyncService{
		client:              client,
		transactionRepo:     transactionRepo,
		departmentRepo:      departmentRepo,
		classifier:          classifier,
		aggregates:          aggregates,
		autoAssignThreshold: autoAssignThreshold,
		maxPages:            maxPages,
	}
}

// RunParams holds the input for a synchronization run
type RunParams struct {
	DateFrom     time.Time
	DateTo       time.Time
	DepartmentID int32
	// AutoClassify runs the classifier for newly created records.
	AutoClassify bool
	// Reclassify re-runs the classifier for changed records that would
	// otherwise keep their existing category.
	Reclassify bool
	// ApplyDefaultCategory assigns the department's default category to
	// records still uncategorized after the run. Opt-in.
	ApplyDefaultCategory bool
	BatchSize            int
}

type fetchSide struct {
	name  string
	fetch func(ctx context.Context, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error)
}

// Run imports ledger records for the date range and department. Per-record
// failures are collected into the result; only a failure to reach the ledger
// at all aborts the run.
func (s *SyncService) Run(ctx context.Context, params RunParams) (*domain.SyncRunResult, error) {
	if params.DateFrom.After(params.DateTo) {
		return nil, domain.ErrInvalidDateRange
	}
	department, err := s.departmentRepo.GetByID(params.DepartmentID)
	if err != nil {
		return nil, err
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	result := &domain.SyncRunResult{RunID: uuid.New()}
	affected := make(map[cache.Key]struct{})
	started := time.Now()

	log.Info().
		Str("run_id", result.RunID.String()).
		Int32("department_id", params.DepartmentID).
		Time("date_from", params.DateFrom).
		Time("date_to", params.DateTo).
		Int("batch_size", batchSize).
		Msg("Starting ledger sync run")

	sides := []fetchSide{
		{name: "receipts", fetch: s.client.FetchReceipts},
		{name: "payments", fetch: s.client.FetchPayments},
	}
	for _, side := range sides {
		if err := s.syncSide(ctx, side, params, batchSize, result, affected); err != nil {
			return nil, err
		}
	}

	if params.ApplyDefaultCategory && department.DefaultCategoryID != nil {
		assigned, err := s.transactionRepo.AssignCategoryWhereUncategorized(
			params.DepartmentID, params.DateFrom, params.DateTo, *department.DefaultCategoryID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("default category assignment: %v", err))
		} else if assigned > 0 {
			result.DefaultAssigned = assigned
			s.aggregates.Invalidate(cache.Filter{
				CategoryID:   department.DefaultCategoryID,
				DepartmentID: &params.DepartmentID,
			})
		}
	}

	for key := range affected {
		k := key
		s.aggregates.Invalidate(cache.Filter{
			CategoryID:   &k.CategoryID,
			Year:         &k.Year,
			DepartmentID: &k.DepartmentID,
		})
	}

	result.Duration = time.Since(started)

	log.Info().
		Str("run_id", result.RunID.String()).
		Int("fetched", result.Fetched).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("auto_categorized", result.AutoCategorized).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Ledger sync run finished")

	return result, nil
}

func (s *SyncService) syncSide(ctx context.Context, side fetchSide, params RunParams, batchSize int, result *domain.SyncRunResult, affected map[cache.Key]struct{}) error {
	offset := 0
	for page := 0; ; page++ {
		if page >= s.maxPages {
			log.Warn().
				Str("run_id", result.RunID.String()).
				Str("side", side.name).
				Int("max_pages", s.maxPages).
				Msg("Page ceiling reached, stopping pagination")
			return nil
		}

		records, err := side.fetch(ctx, params.DateFrom, params.DateTo, offset, batchSize)
		if err != nil {
			return fmt.Errorf("fetch %s page %d: %w", side.name, page, err)
		}
		result.Fetched += len(records)

		for i := range records {
			s.processRecord(ctx, &records[i], params, result, affected)
		}

		if len(records) < batchSize {
			return nil
		}
		offset += len(records)
	}
}

// processRecord is fail-soft: any per-record problem lands in the error list
// with the external id as context and the run moves on.
func (s *SyncService) processRecord(ctx context.Context, record *domain.RawRecord, params RunParams, result *domain.SyncRunResult, affected map[cache.Key]struct{}) {
	result.Processed++

	txDate, err := s.validateRecord(record)
	if err != nil {
		result.AddError(record.ExternalID, err)
		return
	}

	key := domain.BuildNaturalKey(record.ExternalID, params.DepartmentID, record.PaymentType, *record.Amount)
	existing, err := s.transactionRepo.GetByNaturalKey(key)
	switch {
	case err == nil:
		s.updateExisting(ctx, existing, record, params, result, affected)
	case errors.Is(err, domain.ErrTransactionNotFound):
		// The exact key is new, but the source record may be a known row whose
		// amount changed. A single candidate with the same source id is
		// treated as that row; anything else is a genuinely new record.
		candidates, listErr := s.transactionRepo.ListBySourceID(params.DepartmentID, record.ExternalID, record.PaymentType)
		if listErr != nil {
			result.AddError(record.ExternalID, listErr)
			return
		}
		if len(candidates) == 1 {
			s.updateExisting(ctx, candidates[0], record, params, result, affected)
			return
		}
		s.createNew(ctx, record, txDate, params, result, affected)
	default:
		result.AddError(record.ExternalID, err)
	}
}

func (s *SyncService) validateRecord(record *domain.RawRecord) (time.Time, error) {
	if record.DecodeError != nil {
		return time.Time{}, fmt.Errorf("undecodable source record: %w", record.DecodeError)
	}
	if record.ExternalID == "" {
		return time.Time{}, domain.ErrMissingExternalID
	}
	if record.Amount == nil {
		return time.Time{}, fmt.Errorf("%w: amount is missing", domain.ErrInvalidInput)
	}
	if record.Amount.IsNegative() {
		return time.Time{}, domain.ErrInvalidAmount
	}
	txDate, err := time.Parse(ledgerDateFormat, record.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q: %w", record.Date, err)
	}
	return txDate, nil
}

func (s *SyncService) createNew(ctx context.Context, record *domain.RawRecord, txDate time.Time, params RunParams, result *domain.SyncRunResult, affected map[cache.Key]struct{}) {
	tx := &domain.Transaction{
		DepartmentID:     params.DepartmentID,
		ExternalID:       record.ExternalID,
		PaymentType:      record.PaymentType,
		Amount:           *record.Amount,
		TransactionDate:  txDate,
		CounterpartyName: record.CounterpartyName,
		CounterpartyINN:  record.CounterpartyINN,
		PaymentPurpose:   record.PaymentPurpose,
		OperationLabel:   record.OperationLabel,
		Status:           domain.TransactionStatusNew,
		IsActive:         true,
	}

	if params.AutoClassify {
		decision, err := s.classify(ctx, record, params.DepartmentID)
		if err != nil {
			result.AddError(record.ExternalID, fmt.Errorf("classification: %w", err))
		} else {
			s.applyDecision(tx, decision)
		}
	}

	created, err := s.transactionRepo.Create(tx)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a race with a concurrent run importing the same record; the
		// unique index held the line. Retry as an update.
		existing, getErr := s.transactionRepo.GetByNaturalKey(tx.NaturalKey())
		if getErr != nil {
			result.AddError(record.ExternalID, getErr)
			return
		}
		s.updateExisting(ctx, existing, record, params, result, affected)
		return
	}
	if err != nil {
		result.AddError(record.ExternalID, err)
		return
	}

	result.Created++
	if created.Status == domain.TransactionStatusCategorized {
		result.AutoCategorized++
	}
	if created.CategoryID != nil {
		affected[cache.Key{
			CategoryID:   *created.CategoryID,
			Year:         created.TransactionDate.Year(),
			DepartmentID: created.DepartmentID,
		}] = struct{}{}
	}
}

func (s *SyncService) updateExisting(ctx context.Context, existing *domain.Transaction, record *domain.RawRecord, params RunParams, result *domain.SyncRunResult, affected map[cache.Key]struct{}) {
	if existing.SourceFieldsEqual(*record.Amount, record.PaymentPurpose, record.OperationLabel) {
		result.Skipped++
		return
	}

	updated, err := s.transactionRepo.UpdateSource(existing.DepartmentID, existing.ID, &domain.UpdateSourceData{
		Amount:           *record.Amount,
		PaymentPurpose:   record.PaymentPurpose,
		OperationLabel:   record.OperationLabel,
		CounterpartyName: record.CounterpartyName,
		CounterpartyINN:  record.CounterpartyINN,
	})
	if err != nil {
		result.AddError(record.ExternalID, err)
		return
	}
	result.Updated++

	// The existing category is kept unless the caller explicitly asked for
	// confidence-based re-classification.
	if params.Reclassify && params.AutoClassify {
		decision, err := s.classify(ctx, record, params.DepartmentID)
		if err != nil {
			result.AddError(record.ExternalID, fmt.Errorf("reclassification: %w", err))
		} else if decision.CategoryID != nil {
			data := &domain.ClassificationData{}
			applyThreshold(data, decision, s.autoAssignThreshold)
			reclassified, err := s.transactionRepo.UpdateClassification(existing.DepartmentID, existing.ID, data)
			if err != nil {
				result.AddError(record.ExternalID, err)
			} else {
				updated = reclassified
			}
		}
	}

	for _, tx := range []*domain.Transaction{existing, updated} {
		if tx.CategoryID != nil {
			affected[cache.Key{
				CategoryID:   *tx.CategoryID,
				Year:         tx.TransactionDate.Year(),
				DepartmentID: tx.DepartmentID,
			}] = struct{}{}
		}
	}
}

func (s *SyncService) classify(ctx context.Context, record *domain.RawRecord, departmentID int32) (*classify.Decision, error) {
	return s.classifier.Classify(ctx, classify.Input{
		PaymentPurpose:   record.PaymentPurpose,
		CounterpartyName: record.CounterpartyName,
		CounterpartyINN:  record.CounterpartyINN,
		Amount:           *record.Amount,
		DepartmentID:     departmentID,
		PaymentType:      record.PaymentType,
		OperationLabel:   record.OperationLabel,
	})
}

// applyDecision writes the classifier outcome onto a new transaction using the
// auto-assign threshold: confident decisions are categorized outright, weaker
// ones become review suggestions, and abstentions (or stub exclusions) leave
// the record as imported.
func (s *SyncService) applyDecision(tx *domain.Transaction, decision *classify.Decision) {
	data := &domain.ClassificationData{Status: tx.Status}
	applyThreshold(data, decision, s.autoAssignThreshold)
	tx.CategoryID = data.CategoryID
	tx.SuggestedCategoryID = data.SuggestedCategoryID
	tx.Confidence = data.Confidence
	if data.Status != "" {
		tx.Status = data.Status
	}
}

func applyThreshold(data *domain.ClassificationData, decision *classify.Decision, threshold float64) {
	if decision.CategoryID == nil {
		data.Status = domain.TransactionStatusNew
		return
	}
	confidence := decision.Confidence
	data.Confidence = &confidence
	if confidence >= threshold {
		data.CategoryID = decision.CategoryID
		data.Status = domain.TransactionStatusCategorized
		return
	}
	data.SuggestedCategoryID = decision.CategoryID
	data.Status = domain.TransactionStatusNeedsReview
}
