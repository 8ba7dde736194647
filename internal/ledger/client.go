// Package ledger provides the HTTP client for the external accounting ledger.
// The ledger exposes receipts and payments as date-ranged, offset-paginated
// listings; callers page until a short page signals exhaustion.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/config"
	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"golang.org/x/time/rate"
)

const dateFormat = "2006-01-02"

// Client provides access to the external ledger API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a ledger client from configuration. Requests against the
// ledger API are throttled client-side so a large sync run cannot trip the
// ledger's own rate limiting mid-batch.
func NewClient(cfg config.LedgerConfig) *Client {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
	}
}

// FetchReceipts fetches one page of receipt-side records in [dateFrom, dateTo].
func (c *Client) FetchReceipts(ctx context.Context, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error) {
	return c.fetchPage(ctx, "receipts", domain.PaymentTypeReceipt, dateFrom, dateTo, offset, limit)
}

// FetchPayments fetches one page of payment-side records in [dateFrom, dateTo].
func (c *Client) FetchPayments(ctx context.Context, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error) {
	return c.fetchPage(ctx, "payments", domain.PaymentTypePayment, dateFrom, dateTo, offset, limit)
}

func (c *Client) fetchPage(ctx context.Context, resource string, paymentType domain.PaymentType, dateFrom, dateTo time.Time, offset, limit int) ([]domain.RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("date_from", dateFrom.Format(dateFormat))
	query.Set("date_to", dateTo.Format(dateFormat))
	query.Set("offset", fmt.Sprintf("%d", offset))
	query.Set("limit", fmt.Sprintf("%d", limit))

	endpoint := fmt.Sprintf("%s/api/v1/%s?%s", c.baseURL, resource, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger %s request failed: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("ledger authentication failed: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ledger %s returned %s: %s", resource, resp.Status, body)
	}

	var payload struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ledger %s response: %w", resource, err)
	}

	records := make([]domain.RawRecord, 0, len(payload.Items))
	for _, item := range payload.Items {
		records = append(records, decodeRecord(item, paymentType))
	}
	return records, nil
}

// decodeRecord unmarshals the known fields and keeps everything else the
// source sent as opaque pass-through. An undecodable item does not fail the
// page: it becomes a record carrying the decode error, so the run reports it
// alongside the item's other per-record failures.
func decodeRecord(item json.RawMessage, paymentType domain.PaymentType) domain.RawRecord {
	var record domain.RawRecord
	if err := json.Unmarshal(item, &record); err != nil {
		return domain.RawRecord{
			ExternalID:  bestEffortExternalID(item),
			PaymentType: paymentType,
			DecodeError: err,
		}
	}
	record.PaymentType = paymentType

	var all map[string]json.RawMessage
	if err := json.Unmarshal(item, &all); err != nil {
		record.DecodeError = err
		return record
	}
	for _, known := range []string{"external_id", "date", "amount", "payment_type", "counterparty_name", "counterparty_inn", "payment_purpose", "operation_label"} {
		delete(all, known)
	}
	if len(all) > 0 {
		record.Extra = all
	}
	return record
}

// bestEffortExternalID pulls the source id out of an otherwise undecodable
// item so the resulting error still names the record.
func bestEffortExternalID(item json.RawMessage) string {
	var partial struct {
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(item, &partial); err != nil {
		return ""
	}
	return partial.ExternalID
}
