package postgres

import (
	"context"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TransactionRepository implements domain.TransactionRepository using PostgreSQL.
// The transactions table carries a unique index on
// (external_id, department_id, payment_type, amount) as the last line of
// defense for the dedup invariant even if application-level dedup misbehaves.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `
	id, department_id, external_id, payment_type, amount, transaction_date,
	counterparty_name, counterparty_inn, payment_purpose, operation_label,
	category_id, suggested_category_id, confidence, status, is_active,
	created_at, updated_at`

// Create inserts a new transaction row
func (r *TransactionRepository) Create(transaction *domain.Transaction) (*domain.Transaction, error) {
	ctx := context.Background()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (
			department_id, external_id, payment_type, amount, transaction_date,
			counterparty_name, counterparty_inn, payment_purpose, operation_label,
			category_id, suggested_category_id, confidence, status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+transactionColumns,
		transaction.DepartmentID,
		transaction.ExternalID,
		string(transaction.PaymentType),
		transaction.Amount,
		transaction.TransactionDate,
		transaction.CounterpartyName,
		transaction.CounterpartyINN,
		transaction.PaymentPurpose,
		transaction.OperationLabel,
		transaction.CategoryID,
		transaction.SuggestedCategoryID,
		transaction.Confidence,
		string(transaction.Status),
		transaction.IsActive,
	)

	created, err := scanTransaction(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a transaction by its ID within a department
func (r *TransactionRepository) GetByID(departmentID int32, id int32) (*domain.Transaction, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE department_id = $1 AND id = $2 AND is_active = TRUE`,
		departmentID, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// GetByNaturalKey retrieves a transaction by its import natural key
func (r *TransactionRepository) GetByNaturalKey(key domain.NaturalKey) (*domain.Transaction, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE external_id = $1 AND department_id = $2 AND payment_type = $3
		  AND amount = $4::numeric AND is_active = TRUE`,
		key.ExternalID, key.DepartmentID, string(key.PaymentType), key.Amount)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListBySourceID retrieves all active rows sharing a source external id
func (r *TransactionRepository) ListBySourceID(departmentID int32, externalID string, paymentType domain.PaymentType) ([]*domain.Transaction, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE department_id = $1 AND external_id = $2 AND payment_type = $3
		  AND is_active = TRUE
		ORDER BY id`,
		departmentID, externalID, string(paymentType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// UpdateSource updates the source-mutable fields of a transaction
func (r *TransactionRepository) UpdateSource(departmentID int32, id int32, data *domain.UpdateSourceData) (*domain.Transaction, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET amount = $3, payment_purpose = $4, operation_label = $5,
		    counterparty_name = $6, counterparty_inn = $7, updated_at = NOW()
		WHERE department_id = $1 AND id = $2 AND is_active = TRUE
		RETURNING `+transactionColumns,
		departmentID, id,
		data.Amount, data.PaymentPurpose, data.OperationLabel,
		data.CounterpartyName, data.CounterpartyINN)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return tx, nil
}

// UpdateClassification updates category assignment, confidence and status
func (r *TransactionRepository) UpdateClassification(departmentID int32, id int32, data *domain.ClassificationData) (*domain.Transaction, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET category_id = $3, suggested_category_id = $4, confidence = $5,
		    status = $6, updated_at = NOW()
		WHERE department_id = $1 AND id = $2 AND is_active = TRUE
		RETURNING `+transactionColumns,
		departmentID, id,
		data.CategoryID, data.SuggestedCategoryID, data.Confidence, string(data.Status))

	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// AssignCategoryWhereUncategorized applies a department default category to
// records the classifier left uncategorized within the date range. The default
// is an explicit operator decision, so confidence is pinned to 1.0; categorized
// rows always carry a confidence at or above the auto-assign threshold.
func (r *TransactionRepository) AssignCategoryWhereUncategorized(departmentID int32, dateFrom, dateTo time.Time, categoryID int32) (int64, error) {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET category_id = $4, status = $5, confidence = 1.0, updated_at = NOW()
		WHERE department_id = $1
		  AND transaction_date BETWEEN $2 AND $3
		  AND category_id IS NULL
		  AND status = $6
		  AND is_active = TRUE`,
		departmentID, dateFrom, dateTo, categoryID,
		string(domain.TransactionStatusCategorized), string(domain.TransactionStatusNew))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CounterpartyHistoryByINN returns categorized-transaction counts per category
// for a counterparty tax id
func (r *TransactionRepository) CounterpartyHistoryByINN(departmentID int32, inn string) ([]domain.CounterpartyCategoryStat, error) {
	return r.counterpartyHistory(`counterparty_inn = $2`, departmentID, inn)
}

// CounterpartyHistoryByName returns categorized-transaction counts per
// category for a normalized counterparty name. The SQL normalization must
// match domain.NormalizeCounterpartyName exactly: fold case, collapse interior
// whitespace, and trim the edges.
func (r *TransactionRepository) CounterpartyHistoryByName(departmentID int32, normalizedName string) ([]domain.CounterpartyCategoryStat, error) {
	return r.counterpartyHistory(`BTRIM(LOWER(regexp_replace(counterparty_name, '\s+', ' ', 'g'))) = $2`, departmentID, normalizedName)
}

func (r *TransactionRepository) counterpartyHistory(predicate string, departmentID int32, identity string) ([]domain.CounterpartyCategoryStat, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT category_id, COUNT(*) AS cnt
		FROM transactions
		WHERE department_id = $1 AND `+predicate+`
		  AND category_id IS NOT NULL AND status = '`+string(domain.TransactionStatusCategorized)+`'
		  AND is_active = TRUE
		GROUP BY category_id
		ORDER BY cnt DESC, category_id`,
		departmentID, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.CounterpartyCategoryStat
	for rows.Next() {
		var stat domain.CounterpartyCategoryStat
		if err := rows.Scan(&stat.CategoryID, &stat.Count); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// SummarizeCategoryYear computes the yearly rollup for one category
func (r *TransactionRepository) SummarizeCategoryYear(departmentID int32, categoryID int32, year int) (*domain.CategoryRollup, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM transaction_date)::int AS month,
		       COALESCE(SUM(CASE WHEN payment_type = $4 THEN amount ELSE -amount END), 0) AS total
		FROM transactions
		WHERE department_id = $1 AND category_id = $2
		  AND EXTRACT(YEAR FROM transaction_date) = $3
		  AND is_active = TRUE
		GROUP BY month
		ORDER BY month`,
		departmentID, categoryID, year, string(domain.PaymentTypePayment))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rollup := &domain.CategoryRollup{
		Total:   decimal.Zero,
		ByMonth: make(map[time.Month]decimal.Decimal),
	}
	for rows.Next() {
		var month int
		var total pgtype.Numeric
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		amount := pgNumericToDecimal(total)
		rollup.ByMonth[time.Month(month)] = amount
		rollup.Total = rollup.Total.Add(amount)
	}
	return rollup, rows.Err()
}

// SoftDelete marks a transaction inactive, preserving audit history
func (r *TransactionRepository) SoftDelete(departmentID int32, id int32) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET is_active = FALSE, updated_at = NOW()
		WHERE department_id = $1 AND id = $2 AND is_active = TRUE`,
		departmentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx          domain.Transaction
		paymentType string
		status      string
		amount      pgtype.Numeric
		txDate      pgtype.Date
	)
	err := row.Scan(
		&tx.ID, &tx.DepartmentID, &tx.ExternalID, &paymentType, &amount, &txDate,
		&tx.CounterpartyName, &tx.CounterpartyINN, &tx.PaymentPurpose, &tx.OperationLabel,
		&tx.CategoryID, &tx.SuggestedCategoryID, &tx.Confidence, &status, &tx.IsActive,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.PaymentType = domain.PaymentType(paymentType)
	tx.Status = domain.TransactionStatus(status)
	tx.Amount = pgNumericToDecimal(amount)
	tx.TransactionDate = txDate.Time
	return &tx, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
