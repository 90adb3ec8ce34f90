package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteClient abstracts HTTP communication with the receipt service.
// Implementations must be safe for concurrent use. It is the contract the
// engine depends on; the service itself lives elsewhere.
type RemoteClient interface {
	// Ping validates connectivity with a cheap health request.
	Ping(ctx context.Context) error

	// List retrieves receipts, optionally restricted to those updated since
	// the given time. Every returned receipt carries the server's version
	// and updated_at.
	List(ctx context.Context, since time.Time) ([]RemoteReceipt, error)

	// Get retrieves the authoritative representation of one receipt.
	Get(ctx context.Context, id string) (*RemoteReceipt, error)

	// Create submits a new receipt. The response carries the
	// server-assigned ID and initial version.
	Create(ctx context.Context, req *CreateReceiptRequest) (*RemoteReceipt, error)

	// Update submits changed fields with a version precondition. A stale
	// version yields a *ConflictError whose Current field holds the
	// authoritative representation from the response body.
	Update(ctx context.Context, id string, req *UpdateReceiptRequest) (*RemoteReceipt, error)

	// Delete removes a receipt. Deleting an already-gone receipt succeeds.
	Delete(ctx context.Context, id string) error
}

// RemoteReceipt is the service's representation of a receipt.
type RemoteReceipt struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	CompanyID   string   `json:"company_id,omitempty"`
	Status      string   `json:"status"`
	VendorName  string   `json:"vendor_name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	TotalCents  int64    `json:"total_cents"`
	TaxCents    int64    `json:"tax_cents"`
	Currency    string   `json:"currency"`
	OCRText     string   `json:"ocr_text,omitempty"`
	ReceiptDate string   `json:"receipt_date,omitempty"`
	Version     int64    `json:"version"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ToReceipt converts the wire representation into a synced local record.
func (rr *RemoteReceipt) ToReceipt() *Receipt {
	r := &Receipt{
		ID:          rr.ID,
		OwnerID:     rr.OwnerID,
		CompanyID:   rr.CompanyID,
		Status:      ReceiptStatus(rr.Status),
		VendorName:  rr.VendorName,
		Category:    rr.Category,
		Tags:        append([]string(nil), rr.Tags...),
		Description: rr.Description,
		Notes:       rr.Notes,
		TotalCents:  rr.TotalCents,
		TaxCents:    rr.TaxCents,
		Currency:    rr.Currency,
		OCRText:     rr.OCRText,
		Version:     rr.Version,
		IsSynced:    true,
	}
	if rr.ReceiptDate != "" {
		if t, err := time.Parse(time.RFC3339, rr.ReceiptDate); err == nil {
			r.ReceiptDate = &t
		}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, rr.CreatedAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, rr.UpdatedAt)
	return r
}

// CreateReceiptRequest for POST /api/v1/receipts. ClientID is the local
// placeholder ULID, echoed back for correlation; IdempotencyKey dedupes
// retried creates server-side.
type CreateReceiptRequest struct {
	ClientID       string   `json:"client_id,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
	OwnerID        string   `json:"owner_id"`
	CompanyID      string   `json:"company_id,omitempty"`
	Status         string   `json:"status,omitempty"`
	VendorName     string   `json:"vendor_name,omitempty"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Description    string   `json:"description,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	TotalCents     int64    `json:"total_cents"`
	TaxCents       int64    `json:"tax_cents"`
	Currency       string   `json:"currency,omitempty"`
	ReceiptDate    string   `json:"receipt_date,omitempty"`
}

// UpdateReceiptRequest for PATCH /api/v1/receipts/{id}. Version is the
// optimistic-concurrency precondition; only non-nil fields are changed.
type UpdateReceiptRequest struct {
	Version     int64     `json:"version"`
	Status      *string   `json:"status,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// listResponse from GET /api/v1/receipts.
type listResponse struct {
	Receipts []RemoteReceipt `json:"receipts"`
	Total    int             `json:"total"`
}

// HTTPClient implements RemoteClient using net/http.
type HTTPClient struct {
	baseURL    string
	tokens     TokenSource
	deviceID   string
	httpClient *http.Client
	logger     *DebugLogger
}

// NewHTTPClient creates a receipt service client. deviceID is optional; if
// non-empty it is sent as X-Pocket-Device-ID for observability.
func NewHTTPClient(baseURL string, tokens TokenSource, deviceID string) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		tokens:   tokens,
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

// WithLogger attaches a debug logger for request/response tracing.
func (c *HTTPClient) WithLogger(logger *DebugLogger) *HTTPClient {
	c.logger = logger
	return c
}

func (c *HTTPClient) setHeaders(req *http.Request) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "pocket-client/1.0")
	if strings.TrimSpace(c.deviceID) != "" {
		req.Header.Set("X-Pocket-Device-ID", c.deviceID)
	}
	return nil
}

func newRemoteError(op string, statusCode int, body []byte) *RemoteError {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &RemoteError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, &RemoteError{Operation: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &RemoteError{Operation: op, Err: err}
	}
	if err := c.setHeaders(req); err != nil {
		return nil, &RemoteError{Operation: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.LogRequest(method, c.baseURL+path, raw)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogError(op, err)
		return nil, &RemoteError{Operation: op, Err: err}
	}
	c.logger.LogResponse(resp.StatusCode, resp.Status)
	return resp, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newRemoteError("ping", resp.StatusCode, body)
	}
	return nil
}

func (c *HTTPClient) List(ctx context.Context, since time.Time) ([]RemoteReceipt, error) {
	path := "/api/v1/receipts"
	if !since.IsZero() {
		path += "?updated_since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	resp, err := c.do(ctx, "list_receipts", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newRemoteError("list_receipts", resp.StatusCode, body)
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RemoteError{Operation: "list_receipts", Err: err}
	}
	return result.Receipts, nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*RemoteReceipt, error) {
	resp, err := c.do(ctx, "get_receipt", http.MethodGet, "/api/v1/receipts/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newRemoteError("get_receipt", resp.StatusCode, body)
	}

	var result RemoteReceipt
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RemoteError{Operation: "get_receipt", Err: err}
	}
	return &result, nil
}

func (c *HTTPClient) Create(ctx context.Context, req *CreateReceiptRequest) (*RemoteReceipt, error) {
	resp, err := c.do(ctx, "create_receipt", http.MethodPost, "/api/v1/receipts", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newRemoteError("create_receipt", resp.StatusCode, body)
	}

	var result RemoteReceipt
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RemoteError{Operation: "create_receipt", Err: err}
	}
	return &result, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, req *UpdateReceiptRequest) (*RemoteReceipt, error) {
	resp, err := c.do(ctx, "update_receipt", http.MethodPatch, "/api/v1/receipts/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		// Conflict body carries the current authoritative representation.
		var current RemoteReceipt
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			return nil, &RemoteError{Operation: "update_receipt", StatusCode: http.StatusConflict, Err: err}
		}
		return nil, &ConflictError{Operation: "update_receipt", Current: &current}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newRemoteError("update_receipt", resp.StatusCode, body)
	}

	var result RemoteReceipt
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RemoteError{Operation: "update_receipt", Err: err}
	}
	return &result, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, "delete_receipt", http.MethodDelete, "/api/v1/receipts/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Already gone counts as success: the intent was to make it not exist.
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return newRemoteError("delete_receipt", resp.StatusCode, body)
}
