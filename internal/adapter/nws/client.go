package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/observability"
)

// RequestTimeout bounds every request to the alert source.
const RequestTimeout = 30 * time.Second

const (
	endpointActive = "active"
	endpointByID   = "by_id"
)

// Client fetches alerts from the NWS alerts API.
// It implements pipeline.AlertSource.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an alerts API client. baseURL is the API root, e.g.
// "https://api.weather.gov".
func NewClient(baseURL, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchActive returns the features of the active alerts collection in the
// order the API lists them.
func (c *Client) FetchActive(ctx context.Context) ([]domain.RawAlert, error) {
	body, status, err := c.get(ctx, c.baseURL+"/alerts/active", endpointActive)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.observe(endpointActive, "error")
		return nil, fmt.Errorf("%w: active alerts: status %d: %s", domain.ErrTransport, status, truncate(body))
	}

	var resp collection
	if err := json.Unmarshal(body, &resp); err != nil {
		c.observe(endpointActive, "error")
		return nil, fmt.Errorf("%w: decode active alerts: %v", domain.ErrShape, err)
	}
	if resp.Features == nil {
		c.observe(endpointActive, "error")
		return nil, fmt.Errorf("%w: active alerts response has no features", domain.ErrShape)
	}

	c.observe(endpointActive, "success")
	return *resp.Features, nil
}

// FetchByID returns a single alert. A 404 or a body without properties yields
// domain.ErrAlertNotFound.
func (c *Client) FetchByID(ctx context.Context, rawID string) (domain.RawAlert, error) {
	u := fmt.Sprintf("%s/alerts/%s", c.baseURL, url.PathEscape(rawID))

	body, status, err := c.get(ctx, u, endpointByID)
	if err != nil {
		return domain.RawAlert{}, err
	}
	switch {
	case status == http.StatusNotFound:
		c.observe(endpointByID, "not_found")
		return domain.RawAlert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, rawID)
	case status != http.StatusOK:
		c.observe(endpointByID, "error")
		return domain.RawAlert{}, fmt.Errorf("%w: alert %s: status %d: %s", domain.ErrTransport, rawID, status, truncate(body))
	}

	var alert domain.RawAlert
	if err := json.Unmarshal(body, &alert); err != nil {
		c.observe(endpointByID, "error")
		return domain.RawAlert{}, fmt.Errorf("%w: decode alert %s: %v", domain.ErrShape, rawID, err)
	}
	if alert.Properties == nil {
		c.observe(endpointByID, "not_found")
		return domain.RawAlert{}, fmt.Errorf("%w: %s has no properties", domain.ErrAlertNotFound, rawID)
	}

	c.observe(endpointByID, "success")
	return alert, nil
}

func (c *Client) get(ctx context.Context, fullURL, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.SourceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.observe(endpoint, "error")
		return nil, 0, fmt.Errorf("%w: %s request: %v", domain.ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(endpoint, "error")
		return nil, 0, fmt.Errorf("%w: read %s response: %v", domain.ErrTransport, endpoint, err)
	}

	c.logger.Debug("alert source request", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))
	return body, resp.StatusCode, nil
}

func (c *Client) observe(endpoint, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceRequests.WithLabelValues(endpoint, outcome).Inc()
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// Alerts API response types.

// collection is the active alerts FeatureCollection. Features is a pointer so
// an absent field can be told apart from an empty list.
type collection struct {
	Features *[]domain.RawAlert `json:"features"`
}
