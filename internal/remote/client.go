// Package remote talks to the audit sync provider.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// ErrUnexpectedStatus matches every *StatusError.
var ErrUnexpectedStatus = errors.New("remote: unexpected status")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: HTTP %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Config holds the connection settings for the provider.
type Config struct {
	BaseURL string
	Token   string
	// SessionCookie is sent on the queue endpoints, which need a browser session.
	SessionCookie string
	Timeout       time.Duration
}

// Client is a thin HTTP client for the provider endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client. A zero timeout means 15s.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// auditsResponse is the envelope of the status query.
type auditsResponse struct {
	Data *struct {
		Audits []models.RawRecord `json:"audits"`
	} `json:"data"`
}

// FetchAudits returns the raw audit items the provider reports for status.
// A response without data.audits is an empty list, not an error.
func (c *Client) FetchAudits(ctx context.Context, status models.Status) ([]models.RawRecord, error) {
	body, err := c.Records(ctx, status)
	if err != nil {
		return nil, err
	}

	var resp auditsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s audits: %w", status, err)
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Audits, nil
}

// Records returns the provider's response for status unchanged.
func (c *Client) Records(ctx context.Context, status models.Status) (json.RawMessage, error) {
	u := c.cfg.BaseURL + "?" + url.Values{"status": {string(status)}}.Encode()
	return c.do(ctx, http.MethodGet, u, nil, false)
}

// QueueSize returns the provider's pending queue report.
func (c *Client) QueueSize(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/get_queue_size", nil, true)
}

// ClearQueue asks the provider to retrigger the given queued ids.
func (c *Client) ClearQueue(ctx context.Context, ids []json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/retrigger_cron_async", map[string]any{"ids": ids}, true)
}

// Resync asks the provider to sync a single record again.
func (c *Client) Resync(ctx context.Context, id json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/retrigger_sync", map[string]any{"id": id}, false)
}

func (c *Client) do(ctx context.Context, method, u string, payload any, withSession bool) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if withSession && c.cfg.SessionCookie != "" {
		req.Header.Set("Cookie", c.cfg.SessionCookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(out)}
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, req.URL.Path)
	}
	return out, nil
}
