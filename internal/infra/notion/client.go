package notion

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bitodash/internal/domain"
	"bitodash/internal/infra"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the Notion REST endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"

	apiVersion     = "2022-06-28"
	requestTimeout = 10 * time.Second
)

// Client talks to the Notion database that serves as the external asset
// ledger. The database schema is fixed: Target (select), Date (date),
// Quantity (number), Amount (number).
type Client struct {
	http      *resty.Client
	creds     domain.NotionCredentials
	onCreated func(domain.AssetRecord)
	logger    *slog.Logger
}

// NewClient creates a ledger client. Credentials may be zero; calls then
// fail with ConfigError before any network I/O.
func NewClient(baseURL string, creds domain.NotionCredentials) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Notion-Version", apiVersion).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(creds.Token)

	return &Client{
		http:   httpClient,
		creds:  creds,
		logger: slog.Default().With("module", "notion_client"),
	}
}

// SetOnRecordCreated registers a hook fired once per successfully created
// ledger page (used to mirror records into the local journal).
func (c *Client) SetOnRecordCreated(fn func(domain.AssetRecord)) {
	c.onCreated = fn
}

type property struct {
	Type   string   `json:"type"`
	Number *float64 `json:"number,omitempty"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select,omitempty"`
	Date *struct {
		Start string `json:"start"`
	} `json:"date,omitempty"`
}

type queryResponse struct {
	Results []struct {
		ID         string              `json:"id"`
		Properties map[string]property `json:"properties"`
	} `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// QueryAssets returns every raw record in the ledger database, walking
// cursor pagination to the end.
func (c *Client) QueryAssets(ctx context.Context) ([]domain.AssetRecord, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	var (
		records []domain.AssetRecord
		cursor  string
	)
	for {
		page, err := c.queryPage(ctx, cursor)
		if err != nil {
			return nil, err
		}

		for _, result := range page.Results {
			rec := recordFromProperties(result.Properties)
			if rec.Target == "" {
				continue
			}
			records = append(records, rec)
		}

		if !page.HasMore || page.NextCursor == "" {
			return records, nil
		}
		cursor = page.NextCursor
	}
}

// QueryAssetSummaries returns the ledger aggregated by target symbol.
func (c *Client) QueryAssetSummaries(ctx context.Context) ([]domain.AssetSummary, error) {
	records, err := c.QueryAssets(ctx)
	if err != nil {
		return nil, err
	}
	return domain.SummarizeAssets(records), nil
}

// AddAssetRecords creates one ledger page per record. Every record is
// attempted independently (not transactional): one rejected record never
// aborts the batch, and the result reports counts instead of failing whole.
func (c *Client) AddAssetRecords(ctx context.Context, records []domain.AssetRecord) (domain.BatchResult, error) {
	result := domain.BatchResult{Total: len(records)}
	if err := c.requireCredentials(); err != nil {
		return result, err
	}
	if len(records) == 0 {
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, rec := range records {
		wg.Add(1)
		go func(rec domain.AssetRecord) {
			defer wg.Done()
			err := c.createPage(ctx, rec)

			mu.Lock()
			if err != nil {
				result.Failed++
				mu.Unlock()
				c.logger.Warn("Ledger record create failed",
					slog.String("target", rec.Target), slog.Any("error", err))
				return
			}
			result.Successful++
			mu.Unlock()

			if c.onCreated != nil {
				c.onCreated(rec)
			}
		}(rec)
	}
	wg.Wait()

	c.logger.Info("Ledger batch finished",
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int("total", result.Total),
	)
	return result, nil
}

func (c *Client) queryPage(ctx context.Context, cursor string) (*queryResponse, error) {
	body := map[string]interface{}{}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/databases/" + c.creds.DatabaseID + "/query")
	c.observe("query", resp, start)
	if err != nil {
		return nil, domain.NewTransportError("query ledger database", err)
	}
	if apiErr := c.checkStatus(resp); apiErr != nil {
		return nil, apiErr
	}

	var page queryResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode(), Message: "malformed query response", Err: err}
	}
	return &page, nil
}

func (c *Client) createPage(ctx context.Context, rec domain.AssetRecord) error {
	quantity, _ := rec.Quantity.Float64()
	amount, _ := rec.Amount.Float64()
	body := map[string]interface{}{
		"parent": map[string]string{"database_id": c.creds.DatabaseID},
		"properties": map[string]interface{}{
			"Target": map[string]interface{}{
				"select": map[string]string{"name": rec.Target},
			},
			"Date": map[string]interface{}{
				"date": map[string]string{"start": rec.Date},
			},
			"Quantity": map[string]interface{}{"number": quantity},
			"Amount":   map[string]interface{}{"number": amount},
		},
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/pages")
	c.observe("create_page", resp, start)
	if err != nil {
		return domain.NewTransportError("create ledger page", err)
	}
	return c.checkStatus(resp)
}

func (c *Client) requireCredentials() error {
	if !c.creds.IsConfigured() {
		return domain.NewConfigError("notion", domain.ErrCredentialsMissing)
	}
	return nil
}

func (c *Client) checkStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	var envelope errorResponse
	message := ""
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil {
		message = envelope.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode())
	}

	status := resp.StatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &domain.AuthError{Status: status, Message: message}
	}
	return &domain.UpstreamError{Status: status, Message: message}
}

func (c *Client) observe(endpoint string, resp *resty.Response, start time.Time) {
	status := "error"
	if resp != nil && resp.RawResponse != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	infra.UpstreamRequests.WithLabelValues("notion", endpoint, status).Inc()
	infra.UpstreamLatency.WithLabelValues("notion").Observe(float64(time.Since(start).Milliseconds()))
}

// recordFromProperties maps a Notion page's property set onto an asset
// record. Unknown or missing properties contribute zero values.
func recordFromProperties(props map[string]property) domain.AssetRecord {
	var rec domain.AssetRecord

	if p, ok := props["Target"]; ok && p.Select != nil {
		rec.Target = p.Select.Name
	}
	if p, ok := props["Date"]; ok && p.Date != nil {
		rec.Date = p.Date.Start
	}
	if p, ok := props["Quantity"]; ok && p.Number != nil {
		rec.Quantity = decimal.NewFromFloat(*p.Number)
	}
	if p, ok := props["Amount"]; ok && p.Number != nil {
		rec.Amount = decimal.NewFromFloat(*p.Number)
	}
	return rec
}
