// Package client provides the HTTP client for the backend store's PostgREST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"portfolio-api-go/internal/config"
	"portfolio-api-go/internal/metrics"
	"portfolio-api-go/internal/model"
)

const (
	userAgent        = "portfolio-api-go/1.0"
	acceptJSON       = "application/json"
	acceptJSONObject = "application/vnd.pgrst.object+json"

	// maxResponseBytes bounds how much of a store response is buffered.
	maxResponseBytes = 8 << 20
)

// StoreClient sends queries to the backend store.
type StoreClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	restURL    string
	key        string
}

// NewStoreClient creates a StoreClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable store metrics recording.
func NewStoreClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *StoreClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Store.IdleConnections,
		MaxIdleConnsPerHost: cfg.Store.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &StoreClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "store_client"),
		metrics: m,
		restURL: strings.TrimRight(cfg.Store.URL, "/") + cfg.Store.RestPath,
		key:     cfg.Store.Key,
	}
}

// Select runs one read described by spec.
// A failure reported by the store is returned as *model.StoreError.
func (c *StoreClient) Select(ctx context.Context, spec *model.QuerySpec) (*model.Result, error) {
	u := c.tableURL(spec.Table) + "?" + EncodeQuery(spec)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	c.setHeaders(req.Header)
	if spec.Single {
		req.Header.Set("Accept", acceptJSONObject)
	}

	return c.do(req, spec.Table, "select")
}

// Insert writes row into table. The store is asked not to echo the row back,
// so the returned Result usually carries only the status line.
func (c *StoreClient) Insert(ctx context.Context, table string, row any) (*model.Result, error) {
	body, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	c.setHeaders(req.Header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	return c.do(req, table, "insert")
}

func (c *StoreClient) tableURL(table string) string {
	return c.restURL + "/" + url.PathEscape(table)
}

func (c *StoreClient) setHeaders(h http.Header) {
	h.Set("apikey", c.key)
	h.Set("Authorization", "Bearer "+c.key)
	h.Set("Accept", acceptJSON)
	h.Set("User-Agent", userAgent)
}

func (c *StoreClient) do(req *http.Request, table, operation string) (*model.Result, error) {
	c.logger.Debug("store request",
		"method", req.Method,
		"table", table,
		"query", req.URL.RawQuery,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.StoreDuration.WithLabelValues(table, operation).Observe(duration)
	}
	if err != nil {
		return nil, fmt.Errorf("store request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.StoreResponses.WithLabelValues(table, operation, strconv.Itoa(resp.StatusCode)).Inc()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read store response: %w", err)
	}

	statusText := reasonPhrase(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, statusText, data)
	}

	return &model.Result{
		Status:     resp.StatusCode,
		StatusText: statusText,
		Data:       data,
	}, nil
}

// reasonPhrase extracts the text after the code in the status line ("201 Created" -> "Created").
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// parseError turns a non-2xx store response into a StoreError.
func parseError(status int, statusText string, body []byte) *model.StoreError {
	se := &model.StoreError{Status: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Unmarshal(trimmed, se) == nil && se.Message != "" {
		return se
	}
	se = &model.StoreError{Status: status, Message: string(trimmed)}
	if se.Message == "" {
		se.Message = statusText
	}
	return se
}

// EncodeQuery renders spec as a PostgREST query string.
func EncodeQuery(spec *model.QuerySpec) string {
	q := make(url.Values)

	sel := "*"
	if len(spec.Columns) > 0 {
		sel = strings.Join(spec.Columns, ",")
	}
	q.Set("select", sel)

	for _, f := range spec.Filters {
		q.Add(f.Column, encodeFilter(f))
	}
	if spec.Order != nil {
		dir := "desc"
		if spec.Order.Ascending {
			dir = "asc"
		}
		q.Set("order", spec.Order.Column+"."+dir)
	}
	if spec.Limit > 0 {
		q.Set("limit", strconv.Itoa(spec.Limit))
	}
	return q.Encode()
}

func encodeFilter(f model.Filter) string {
	switch f.Op {
	case model.OpIn:
		items := make([]string, len(f.Values))
		for i, v := range f.Values {
			if strings.ContainsAny(v, ",()") {
				v = `"` + v + `"`
			}
			items[i] = v
		}
		return "in.(" + strings.Join(items, ",") + ")"
	default:
		var v string
		if len(f.Values) > 0 {
			v = f.Values[0]
		}
		return string(f.Op) + "." + v
	}
}
