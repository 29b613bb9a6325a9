// Package airtable is the hosted record-store client for the Traffic,
// Projects, Clients, and Updates tables.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// ErrUnavailable marks transport or API failures. Callers can distinguish
// "record does not exist" (nil record, nil error) from "could not ask"
// (wrapped ErrUnavailable) and fail safe instead of treating an outage as
// an empty result.
var ErrUnavailable = errors.New("record store unavailable")

// Record is one Airtable row.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// Client talks to one Airtable base.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, baseID, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		baseID:     baseID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "airtable"),
	}
}

// escapeFormulaValue makes a string safe to embed in a single-quoted
// filterByFormula literal. Single quotes are doubled and backslashes escaped
// so record values can never alter the formula structure.
func escapeFormulaValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `''`)
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + c.baseID + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(data), 200))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// list fetches all records matching the formula, following offset paging.
// An empty formula lists the whole table.
func (c *Client) list(ctx context.Context, table, formula string, maxRecords int) ([]Record, error) {
	var records []Record
	offset := ""
	for {
		query := url.Values{}
		if formula != "" {
			query.Set("filterByFormula", formula)
		}
		if maxRecords > 0 {
			query.Set("maxRecords", fmt.Sprintf("%d", maxRecords))
		}
		if offset != "" {
			query.Set("offset", offset)
		}
		rawURL := c.tableURL(table)
		if encoded := query.Encode(); encoded != "" {
			rawURL += "?" + encoded
		}
		var page listResponse
		if err := c.do(ctx, http.MethodGet, rawURL, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" || (maxRecords > 0 && len(records) >= maxRecords) {
			break
		}
		offset = page.Offset
	}
	return records, nil
}

// findFirst returns the first record matching the formula, or nil when none
// matches. A nil record with nil error means genuinely not found.
func (c *Client) findFirst(ctx context.Context, table, formula string) (*Record, error) {
	records, err := c.list(ctx, table, formula, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// create inserts one record and returns it with its assigned id.
func (c *Client) create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	var created Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), map[string]any{"fields": fields}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// patch updates the named fields on one record.
func (c *Client) patch(ctx context.Context, table, recordID string, fields map[string]any) error {
	rawURL := c.tableURL(table) + "/" + url.PathEscape(recordID)
	return c.do(ctx, http.MethodPatch, rawURL, map[string]any{"fields": fields}, nil)
}

// get fetches a single record by id.
func (c *Client) get(ctx context.Context, table, recordID string) (*Record, error) {
	var rec Record
	rawURL := c.tableURL(table) + "/" + url.PathEscape(recordID)
	if err := c.do(ctx, http.MethodGet, rawURL, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// stringField reads a field as a string. Airtable linked and lookup fields
// arrive as lists; the first element is used.
func stringField(rec *Record, name string) string {
	if rec == nil {
		return ""
	}
	switch v := rec.Fields[name].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

func floatField(rec *Record, name string) float64 {
	if rec == nil {
		return 0
	}
	if v, ok := rec.Fields[name].(float64); ok {
		return v
	}
	return 0
}

func boolField(rec *Record, name string) bool {
	if rec == nil {
		return false
	}
	v, _ := rec.Fields[name].(bool)
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
