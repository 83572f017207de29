package attestd

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

	"attestd/internal/domain"
)

// Client talks to the attestd HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	AdminKey   string
	Actor      string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithAdminKey sets the X-Admin-Key sent on mutating calls.
func WithAdminKey(key string) Option {
	return func(c *Client) {
		c.AdminKey = key
	}
}

func WithActor(actor string) Option {
	return func(c *Client) {
		c.Actor = actor
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attestd: status %d %s: %s", e.Status, e.Code, e.Message)
}

type RevokeInput struct {
	CredentialID string                  `json:"credential_id"`
	IssuerID     string                  `json:"issuer_id,omitempty"`
	Reason       domain.RevocationReason `json:"reason,omitempty"`
	Notes        string                  `json:"notes,omitempty"`
}

func (c *Client) Revoke(ctx context.Context, input RevokeInput) (domain.RevocationEntry, error) {
	var out domain.RevocationEntry
	err := c.do(ctx, http.MethodPost, "/v1/revocations", input, &out)
	return out, err
}

func (c *Client) CheckRevocations(ctx context.Context, credentialIDs []string) (map[string]bool, error) {
	var out struct {
		Results map[string]bool `json:"results"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/revocations:check", map[string]any{"credential_ids": credentialIDs}, &out)
	return out.Results, err
}

func (c *Client) StatusList(ctx context.Context) (domain.StatusListCredential, error) {
	var out domain.StatusListCredential
	err := c.do(ctx, http.MethodGet, "/v1/status-list", nil, &out)
	return out, err
}

func (c *Client) VerifyCredential(ctx context.Context, cred domain.Credential) (domain.VerificationResult, error) {
	var out domain.VerificationResult
	err := c.do(ctx, http.MethodPost, "/v1/credentials:verify", cred, &out)
	return out, err
}

func (c *Client) GetIssuer(ctx context.Context, id string) (domain.IssuerRecord, error) {
	var out domain.IssuerRecord
	err := c.do(ctx, http.MethodGet, "/v1/issuers/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) TrustChain(ctx context.Context, issuerID, credentialID string) (domain.TrustChain, error) {
	path := "/v1/issuers/" + url.PathEscape(issuerID) + "/chain"
	if credentialID != "" {
		path += "?credential_id=" + url.QueryEscape(credentialID)
	}
	var out domain.TrustChain
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil || c.BaseURL == "" {
		return fmt.Errorf("attestd base URL is required")
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}
	if c.Actor != "" {
		req.Header.Set("X-Actor", c.Actor)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
