// Package client is a REST client for the health-protocols backend.
// The bearer token is passed explicitly to every authenticated call.
package client

import (
	"alcyxob/health-protocols/internal/api/dto"
	"alcyxob/health-protocols/internal/domain"
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

	"go.uber.org/zap"
)

// Token is a bearer token obtained from Login.
type Token string

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a non-2xx response body is read.
const maxErrorBody = 64 << 10

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
	// Limit is the server's body ceiling, set on 413 responses that report it.
	Limit int64
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the backend REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the backend at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (Token, *dto.UserResponse, error) {
	body, err := json.Marshal(dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", nil, err
	}
	var resp dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &resp); err != nil {
		return "", nil, err
	}
	return Token(resp.Token), &resp.User, nil
}

// ListCustomers returns the customers linked to the authenticated trainer.
func (c *Client) ListCustomers(ctx context.Context, token Token) ([]dto.UserResponse, error) {
	var customers []dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/trainer/customers", token, nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// ListTemplates returns the protocol template catalogue.
func (c *Client) ListTemplates(ctx context.Context, token Token) ([]domain.ProtocolTemplate, error) {
	var templates []domain.ProtocolTemplate
	if err := c.do(ctx, http.MethodGet, "/api/protocol-templates", token, nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// CreateProtocol posts an encoded ProtocolCreationRequest as-is.
func (c *Client) CreateProtocol(ctx context.Context, token Token, body []byte) (*dto.CreateProtocolResponse, error) {
	var created dto.CreateProtocolResponse
	if err := c.do(ctx, http.MethodPost, "/api/trainer/health-protocols", token, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, path string, token Token, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+string(token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytesOut", len(body)),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return httpErr
	}
	var payload struct {
		Error string `json:"error"`
		Limit int64  `json:"limit"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		httpErr.Message = payload.Error
		httpErr.Limit = payload.Limit
	} else {
		httpErr.Message = strings.TrimSpace(string(raw))
	}
	return httpErr
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}
