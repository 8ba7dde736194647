package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeReceipt PaymentType = "receipt"
	PaymentTypePayment PaymentType = "payment"
)

type TransactionStatus string

const (
	TransactionStatusNew         TransactionStatus = "new"
	TransactionStatusCategorized TransactionStatus = "categorized"
	TransactionStatusNeedsReview TransactionStatus = "needs_review"
)

type Transaction struct {
	ID                  int32             `json:"id"`
	DepartmentID        int32             `json:"departmentId"`
	ExternalID          string            `json:"externalId"`
	PaymentType         PaymentType       `json:"paymentType"`
	Amount              decimal.Decimal   `json:"amount"`
	TransactionDate     time.Time         `json:"transactionDate"`
	CounterpartyName    *string           `json:"counterpartyName,omitempty"`
	CounterpartyINN     *string           `json:"counterpartyInn,omitempty"`
	PaymentPurpose      string            `json:"paymentPurpose"`
	OperationLabel      *string           `json:"operationLabel,omitempty"`
	CategoryID          *int32            `json:"categoryId,omitempty"`
	SuggestedCategoryID *int32            `json:"suggestedCategoryId,omitempty"`
	Confidence          *float64          `json:"confidence,omitempty"`
	Status              TransactionStatus `json:"status"`
	IsActive            bool              `json:"isActive"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// NaturalKey identifies a source record across repeated imports.
// Re-importing the same ledger record must resolve to the same local row.
// Amount is held in fixed two-decimal form so that cosmetically different
// renderings of the same value ("150" vs "150.00") produce equal keys.
type NaturalKey struct {
	ExternalID   string
	DepartmentID int32
	PaymentType  PaymentType
	Amount       string
}

func BuildNaturalKey(externalID string, departmentID int32, paymentType PaymentType, amount decimal.Decimal) NaturalKey {
	return NaturalKey{
		ExternalID:   externalID,
		DepartmentID: departmentID,
		PaymentType:  paymentType,
		Amount:       amount.StringFixed(2),
	}
}

func (t *Transaction) NaturalKey() NaturalKey {
	return BuildNaturalKey(t.ExternalID, t.DepartmentID, t.PaymentType, t.Amount)
}

// SourceFieldsEqual reports whether the source-mutable fields of the local row
// still match the fetched record. Category assignment is deliberately excluded.
func (t *Transaction) SourceFieldsEqual(amount decimal.Decimal, purpose string, label *string) bool {
	if !t.Amount.Equal(amount) {
		return false
	}
	if t.PaymentPurpose != purpose {
		return false
	}
	return equalOptionalString(t.OperationLabel, label)
}

func equalOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NormalizeCounterpartyName folds case and whitespace so counterparty history
// lookups match across cosmetic variations of the same name.
func NormalizeCounterpartyName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// CounterpartyCategoryStat is one row of a counterparty's classification history.
type CounterpartyCategoryStat struct {
	CategoryID int32
	Count      int64
}

// UpdateSourceData carries the fields a re-import is allowed to change.
type UpdateSourceData struct {
	Amount           decimal.Decimal
	PaymentPurpose   string
	OperationLabel   *string
	CounterpartyName *string
	CounterpartyINN  *string
}

// ClassificationData carries a classification outcome applied to a row.
type ClassificationData struct {
	CategoryID          *int32
	SuggestedCategoryID *int32
	Confidence          *float64
	Status              TransactionStatus
}

// CategoryRollup is the raw aggregate a report loader computes from storage.
type CategoryRollup struct {
	Total   decimal.Decimal
	ByMonth map[time.Month]decimal.Decimal
}

type TransactionRepository interface {
	Create(transaction *Transaction) (*Transaction, error)
	GetByID(departmentID int32, id int32) (*Transaction, error)
	GetByNaturalKey(key NaturalKey) (*Transaction, error)
	ListBySourceID(departmentID int32, externalID string, paymentType PaymentType) ([]*Transaction, error)
	UpdateSource(departmentID int32, id int32, data *UpdateSourceData) (*Transaction, error)
	UpdateClassification(departmentID int32, id int32, data *ClassificationData) (*Transaction, error)
	AssignCategoryWhereUncategorized(departmentID int32, dateFrom, dateTo time.Time, categoryID int32) (int64, error)
	CounterpartyHistoryByINN(departmentID int32, inn string) ([]CounterpartyCategoryStat, error)
	CounterpartyHistoryByName(departmentID int32, normalizedName string) ([]CounterpartyCategoryStat, error)
	SummarizeCategoryYear(departmentID int32, categoryID int32, year int) (*CategoryRollup, error)
	SoftDelete(departmentID int32, id int32) error
}
