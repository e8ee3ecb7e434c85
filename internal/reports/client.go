// Package reports implements the HTTP client for the traffic-report
// analytics API. All methods are context-aware, respect the shared rate
// limiter, and retry on transient errors (429, 5xx).
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
)

const (
	maxRetries = 4

	statsEndpoint = "analytics/reports"
	geoEndpoint   = "analytics/geo"
)

// Client is the analytics API HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
}

// NewClient creates a Client. token may be empty for unauthenticated
// deployments; baseURL is required.
func NewClient(token, baseURL string, timeout time.Duration, ratePerSec float64) *Client {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		backoff: 500 * time.Millisecond,
	}
}

// WithBackoff sets the base retry delay. Tests use a tiny value.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.backoff = d
	return c
}

// ─── Report stats ─────────────────────────────────────────────────────────────

// GetReportStats fetches dated report counts for the window in p at the
// requested granularity. Records are returned raw; bucket.Decode turns them
// into DatedCountRecords.
func (c *Client) GetReportStats(ctx context.Context, p timerange.Params, g bucket.Granularity) ([]model.RawRecord, error) {
	params := p.Values()
	if g != "" {
		params.Set("groupBy", string(g))
	}
	recs, err := c.getRecords(ctx, statsEndpoint, params)
	if err != nil {
		return nil, fmt.Errorf("report stats: %w", err)
	}
	return recs, nil
}

// ─── Geo stats ────────────────────────────────────────────────────────────────

// GetGeoStats fetches per-district hotspot and violation lists for the
// window in p.
func (c *Client) GetGeoStats(ctx context.Context, p timerange.Params) ([]model.RawGeoStat, error) {
	recs, err := c.getRecords(ctx, geoEndpoint, p.Values())
	if err != nil {
		return nil, fmt.Errorf("geo stats: %w", err)
	}
	return geo.DecodeStats(recs), nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// getRecords fetches an endpoint whose body is either a JSON array of
// objects or an object wrapping one under data, results or stats.
func (c *Client) getRecords(ctx context.Context, endpoint string, params url.Values) ([]model.RawRecord, error) {
	var body json.RawMessage
	if err := c.get(ctx, endpoint, params, &body); err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

func decodeRecords(body json.RawMessage) ([]model.RawRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []model.RawRecord{}, nil
	}
	if body[0] == '[' {
		var recs []model.RawRecord
		if err := json.Unmarshal(body, &recs); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
		return recs, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	for _, key := range []string{"data", "results", "stats"} {
		if inner, ok := envelope[key]; ok {
			return decodeRecords(inner)
		}
	}
	return nil, fmt.Errorf("decoding response: no data array")
}

// get performs a GET request, handling rate limiting and retries.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("no base URL configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	slog.Debug("reports request", "url", reqURL, "auth", c.token != "")

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "challan-cli/1.0")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}
		slog.Debug("reports response", "status", resp.StatusCode, "bytes", len(body))

		// Retry on server errors and rate limiting
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			_ = json.Unmarshal(body, &apiErr)
			if msg := firstNonEmpty(apiErr.Message, apiErr.Error); msg != "" {
				return fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, msg)
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
