package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRecord is a ledger record as the extraction client delivers it. Required
// fields are validated at the synchronization boundary, not trusted from the
// source; anything the source sends beyond them rides along opaquely in Extra.
type RawRecord struct {
	ExternalID       string                     `json:"external_id"`
	Date             string                     `json:"date"`
	Amount           *decimal.Decimal           `json:"amount"`
	PaymentType      PaymentType                `json:"payment_type"`
	CounterpartyName *string                    `json:"counterparty_name,omitempty"`
	CounterpartyINN  *string                    `json:"counterparty_inn,omitempty"`
	PaymentPurpose   string                     `json:"payment_purpose"`
	OperationLabel   *string                    `json:"operation_label,omitempty"`
	Extra            map[string]json.RawMessage `json:"-"`
	// DecodeError marks an item the extraction client could not decode. The
	// record still flows through the run so the failure lands in the per-record
	// error list instead of aborting the whole page.
	DecodeError error `json:"-"`
}

// SyncRunResult summarizes one synchronization run. It is returned to the
// caller and logged, never persisted; per-record failures are collected here
// instead of aborting the run.
type SyncRunResult struct {
	RunID           uuid.UUID     `json:"runId"`
	Fetched         int           `json:"fetched"`
	Processed       int           `json:"processed"`
	Created         int           `json:"created"`
	Updated         int           `json:"updated"`
	Skipped         int           `json:"skipped"`
	AutoCategorized int           `json:"autoCategorized"`
	DefaultAssigned int64         `json:"defaultAssigned"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors"`
}

// AddError records a per-record failure with enough context to locate the
// source record.
func (r *SyncRunResult) AddError(externalID string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("record %q: %v", externalID, err))
}
