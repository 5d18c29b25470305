// Package healthconnect talks to a Health Connect bridge over HTTP. The bridge
// exposes the on-device provider surface (initialize, permissions, readRecords).
package healthconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"healthsync/internal/health"
)

type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// Unwrap maps the status onto the provider error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return health.ErrPermissionDenied
	case e.Status == http.StatusServiceUnavailable || e.Status == http.StatusPreconditionFailed:
		return health.ErrProviderUnavailable
	default:
		return health.ErrTransientIO
	}
}

func NewClient(httpClient *http.Client, host, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, fmt.Errorf("%w: request failed: %v", health.ErrTransientIO, err)
		}
		// Refused or unresolvable: the bridge is not running.
		return nil, fmt.Errorf("%w: request failed: %v", health.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", health.ErrTransientIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

type initializeResponse struct {
	Initialized bool `json:"initialized"`
}

func (c *Client) Initialize(ctx context.Context) (bool, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/initialize", nil)
	if err != nil {
		return false, err
	}
	var out initializeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("%w: decode initialize: %v", health.ErrTransientIO, err)
	}
	return out.Initialized, nil
}

type permissionRequest struct {
	Permissions []health.Permission `json:"permissions"`
}

func (c *Client) RequestPermission(ctx context.Context, perms []health.Permission) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/permissions", permissionRequest{Permissions: perms})
	return err
}

func (c *Client) ReadRecords(ctx context.Context, rt health.RecordType, opts health.ReadOptions) (health.ReadResult, error) {
	if _, err := health.ParseRecordType(string(rt)); err != nil {
		return health.ReadResult{}, err
	}
	path := "/records/" + url.PathEscape(string(rt))
	body, err := c.doRequest(ctx, http.MethodPost, path, opts)
	if err != nil {
		return health.ReadResult{}, err
	}
	var out health.ReadResult
	if err := json.Unmarshal(body, &out); err != nil {
		return health.ReadResult{}, fmt.Errorf("%w: decode %s records: %v", health.ErrTransientIO, rt, err)
	}
	return out, nil
}

var _ health.Provider = (*Client)(nil)
