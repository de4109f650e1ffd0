package bitrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/logger"
	"github.com/avdeyev/techcard-service/internal/metrics"
)

const (
	// DefaultCatalogIblockID is the information block new finished goods are
	// created in when the config does not say otherwise.
	DefaultCatalogIblockID = 23

	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Client wraps the Bitrix24 REST API reachable through a pre-authorized
// inbound-webhook base URL (https://host/rest/<user>/<token>). The OAuth
// application flow is out of scope.
type Client struct {
	baseURL string
	client  *http.Client

	// IblockID is the catalog block used when creating finished goods.
	IblockID int

	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a CRM client. timeout bounds every single call attempt.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		IblockID:   DefaultCatalogIblockID,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// apiResponse is the standard Bitrix REST envelope.
type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// call performs one REST method call with retry on transport errors and 5xx.
// Timeouts and cancellations are not retried.
func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	log := logger.FromContext(ctx)
	endpoint := fmt.Sprintf("%s/%s.json", c.baseURL, method)
	body := params.Encode()

	start := time.Now()
	result, err := c.callWithRetry(ctx, log, method, endpoint, body)
	metrics.BitrixCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.BitrixCalls.WithLabelValues(method, "error").Inc()
		return nil, err
	}
	metrics.BitrixCalls.WithLabelValues(method, "ok").Inc()
	return result, nil
}

func (c *Client) callWithRetry(ctx context.Context, log *slog.Logger, method, endpoint, body string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter
			jitter := time.Duration(time.Now().UnixNano()%100) * time.Millisecond
			delay := c.retryDelay*time.Duration(1<<uint(attempt-1)) + jitter
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
			}
			log.Warn("Retrying CRM call", "method", method, "attempt", attempt, "delay", delay)
		}

		result, retryable, err := c.doCall(ctx, endpoint, body)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doCall performs a single attempt. The second return value reports whether
// the failure is worth retrying.
func (c *Client) doCall(ctx context.Context, endpoint, body string) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, false, fmt.Errorf("%w: %s", ErrTimeout, err)
		}
		return nil, true, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("%w: server error %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Error != "" {
		return nil, false, &APIError{Code: envelope.Error, Description: envelope.ErrorDescription}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	return envelope.Result, false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// GetDeal fetches a deal by id (crm.deal.get).
func (c *Client) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	params := url.Values{}
	params.Set("id", dealID)

	result, err := c.call(ctx, "crm.deal.get", params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID      string `json:"ID"`
		Title   string `json:"TITLE"`
		StageID string `json:"STAGE_ID"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode deal: %w", err)
	}

	return &domain.Deal{ID: raw.ID, Title: raw.Title, StageID: raw.StageID}, nil
}

// GetDealProductRows fetches the product lines of a deal
// (crm.deal.productrows.get).
func (c *Client) GetDealProductRows(ctx context.Context, dealID string) ([]domain.DealProductRow, error) {
	params := url.Values{}
	params.Set("id", dealID)

	result, err := c.call(ctx, "crm.deal.productrows.get", params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ProductName string          `json:"PRODUCT_NAME"`
		Quantity    decimal.Decimal `json:"QUANTITY"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode product rows: %w", err)
	}

	rows := make([]domain.DealProductRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, domain.DealProductRow{ProductName: r.ProductName, Quantity: r.Quantity})
	}
	return rows, nil
}

// rawProduct tolerates the CRM returning ids as numbers and quantities as
// either numbers or strings.
type rawProduct struct {
	ID       json.Number     `json:"id"`
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Quantity decimal.Decimal `json:"quantity"`
}

// FindProductByCode looks a catalog product up by its symbolic code
// (catalog.product.list). Returns (nil, nil) when no product matches.
func (c *Client) FindProductByCode(ctx context.Context, code string) (*domain.StockItem, error) {
	params := url.Values{}
	params.Set("filter[code]", code)
	params.Set("select[0]", "id")
	params.Set("select[1]", "name")
	params.Set("select[2]", "code")
	params.Set("select[3]", "quantity")

	result, err := c.call(ctx, "catalog.product.list", params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Products []rawProduct `json:"products"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}

	if len(raw.Products) == 0 {
		return nil, nil
	}

	p := raw.Products[0]
	return &domain.StockItem{
		ID:       p.ID.String(),
		Name:     p.Name,
		Code:     p.Code,
		Quantity: p.Quantity,
	}, nil
}

// UpdateProductQuantity writes a product's on-hand quantity
// (catalog.product.update).
func (c *Client) UpdateProductQuantity(ctx context.Context, productID string, quantity decimal.Decimal) error {
	params := url.Values{}
	params.Set("id", productID)
	params.Set("fields[quantity]", quantity.String())

	_, err := c.call(ctx, "catalog.product.update", params)
	return err
}

// CreateProduct creates a tracked, purchasable catalog product
// (catalog.product.add) and returns its id.
func (c *Client) CreateProduct(ctx context.Context, item domain.NewStockItem) (string, error) {
	params := url.Values{}
	params.Set("fields[iblockId]", fmt.Sprintf("%d", c.IblockID))
	params.Set("fields[name]", item.Name)
	params.Set("fields[code]", item.Code)
	params.Set("fields[active]", "Y")
	params.Set("fields[quantity]", item.Quantity.String())
	params.Set("fields[canBuyZero]", "N")
	params.Set("fields[quantityTrace]", "Y")

	result, err := c.call(ctx, "catalog.product.add", params)
	if err != nil {
		return "", err
	}

	var id json.Number
	if err := json.Unmarshal(result, &id); err != nil {
		// Some portal versions wrap the created element
		var wrapped struct {
			Element struct {
				ID json.Number `json:"id"`
			} `json:"element"`
		}
		if err2 := json.Unmarshal(result, &wrapped); err2 != nil {
			return "", fmt.Errorf("failed to decode created product id: %w", err)
		}
		id = wrapped.Element.ID
	}

	return id.String(), nil
}

// AddTimelineComment appends a comment to the deal timeline
// (crm.timeline.comment.add).
func (c *Client) AddTimelineComment(ctx context.Context, dealID, text string) error {
	params := url.Values{}
	params.Set("fields[ENTITY_ID]", dealID)
	params.Set("fields[ENTITY_TYPE]", "deal")
	params.Set("fields[COMMENT]", text)

	_, err := c.call(ctx, "crm.timeline.comment.add", params)
	return err
}

// ListDealStages fetches the deal pipeline stages (crm.status.list filtered
// to DEAL_STAGE), used by the tech card authoring UI.
func (c *Client) ListDealStages(ctx context.Context) ([]domain.DealStage, error) {
	params := url.Values{}
	params.Set("filter[ENTITY_ID]", "DEAL_STAGE")

	result, err := c.call(ctx, "crm.status.list", params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		StatusID string `json:"STATUS_ID"`
		Name     string `json:"NAME"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode stage list: %w", err)
	}

	stages := make([]domain.DealStage, 0, len(raw))
	for _, s := range raw {
		stages = append(stages, domain.DealStage{StatusID: s.StatusID, Name: s.Name})
	}
	return stages, nil
}
