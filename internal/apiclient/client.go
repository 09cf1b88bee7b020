package apiclient

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

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
)

const (
	DefaultTokenPath   = "/api/token/"
	DefaultRefreshPath = "/api/token/refresh/"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HalfOpenRequests is how many trial requests a recovering breaker lets
// through. The catalog loads three lists at once, so each gets a slot.
const HalfOpenRequests = 3

type Config struct {
	BaseURL string
	// ProxyPath is the same-origin prefix browsers use to reach the backend.
	// With UseProxy set, relative paths resolve against it instead of BaseURL.
	ProxyPath   string
	UseProxy    bool
	Timeout     time.Duration
	TokenPath   string
	RefreshPath string
	// Breaker thresholds; zero values take the breaker defaults.
	MaxFailures  int
	BreakerReset time.Duration
}

// Multipart is sent as-is with its own content type instead of JSON.
type Multipart struct {
	Data        []byte
	ContentType string
}

type Options struct {
	Method  string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	// NoAuth sends the request without a bearer token.
	NoAuth bool
	// SkipRefresh disables the one-shot token refresh on 401.
	SkipRefresh bool
}

type Client struct {
	config     Config
	httpClient HTTPClient
	tokens     TokenStore
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

func New(config Config, httpClient HTTPClient, tokens TokenStore, breakers *circuitbreaker.Manager, logger *logrus.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}
	if config.RefreshPath == "" {
		config.RefreshPath = DefaultRefreshPath
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.ProxyPath = strings.TrimRight(config.ProxyPath, "/")

	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
	if breakers != nil {
		maxFailures := config.MaxFailures
		if maxFailures <= 0 {
			maxFailures = 5
		}
		reset := config.BreakerReset
		if reset <= 0 {
			reset = 30 * time.Second
		}
		c.breaker = breakers.GetOrCreate("backend", circuitbreaker.Config{
			MaxFailures: maxFailures,
			Timeout:     reset,
			MaxRequests: HalfOpenRequests,
			IsFailure:   countsAgainstBreaker,
		})
	}
	return c
}

// WithTokens returns a client sharing everything but the token store, used to
// bind the client to one customer session.
func (c *Client) WithTokens(tokens TokenStore) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// HasToken reports whether requests would carry a bearer token.
func (c *Client) HasToken(ctx context.Context) bool {
	if c.tokens == nil {
		return false
	}
	token, err := c.tokens.AccessToken(ctx)
	return err == nil && token != ""
}

// ResolveURL turns a backend path into a full URL. Absolute URLs are kept.
func (c *Client) ResolveURL(path string, query url.Values) (string, error) {
	var raw string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		raw = path
	} else {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		base := c.config.BaseURL
		if c.config.UseProxy {
			base = c.config.ProxyPath
		}
		raw = base + path
	}

	if len(query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", raw, err)
	}
	q := u.Query()
	for key, values := range query {
		q.Del(key)
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Raw performs the request and returns the response body. A 204 or an empty
// body yields nil bytes. A 401 triggers exactly one token refresh and one retry.
func (c *Client) Raw(ctx context.Context, path string, opts Options) ([]byte, error) {
	body, err := c.do(ctx, path, opts)
	if err == nil || StatusOf(err) != http.StatusUnauthorized || opts.SkipRefresh || opts.NoAuth {
		return body, err
	}

	refreshed, refreshErr := c.refresh(ctx)
	if refreshErr != nil {
		c.logger.WithError(refreshErr).WithField("path", path).Warn("Token refresh failed")
	}
	if !refreshed {
		return nil, err
	}

	retry := opts
	retry.SkipRefresh = true
	return c.do(ctx, path, retry)
}

// Fetch decodes the JSON answer into T. It returns nil, nil for empty answers.
func Fetch[T any](ctx context.Context, c *Client, path string, opts Options) (*T, error) {
	data, err := c.Raw(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, path string, opts Options) ([]byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.ResolveURL(path, opts.Query)
	if err != nil {
		return nil, err
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := opts.Body.(type) {
	case nil:
	case Multipart:
		reader = bytes.NewReader(b.Data)
		contentType = b.ContentType
	case *Multipart:
		reader = bytes.NewReader(b.Data)
		contentType = b.ContentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if !opts.NoAuth && c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	var body []byte
	start := time.Now()
	call := func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to backend: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read backend response: %w", err)
		}

		c.logger.WithFields(logrus.Fields{
			"method":   method,
			"path":     path,
			"status":   resp.StatusCode,
			"auth":     req.Header.Get("Authorization") != "",
			"duration": time.Since(start).Milliseconds(),
		}).Debug("Backend request completed")

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Error{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		}
		if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		body = data
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func errorMessage(status int, data []byte) string {
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if encoded, err := json.Marshal(payload.Detail); err == nil {
			return string(encoded)
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

type tokenPair struct {
	Access       string `json:"access"`
	AccessToken  string `json:"access_token"`
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (p tokenPair) access() string {
	if p.Access != "" {
		return p.Access
	}
	return p.AccessToken
}

func (p tokenPair) refresh() string {
	if p.Refresh != "" {
		return p.Refresh
	}
	return p.RefreshToken
}

func (c *Client) refresh(ctx context.Context) (bool, error) {
	if c.tokens == nil {
		return false, nil
	}
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil || refreshToken == "" {
		return false, err
	}

	pair, err := Fetch[tokenPair](ctx, c, c.config.RefreshPath, Options{
		Method:      http.MethodPost,
		Body:        map[string]string{"refresh": refreshToken},
		NoAuth:      true,
		SkipRefresh: true,
	})
	if err != nil {
		return false, err
	}
	if pair == nil || pair.access() == "" {
		return false, fmt.Errorf("refresh response carried no access token")
	}

	if err := c.tokens.SetTokens(ctx, pair.access(), pair.refresh()); err != nil {
		return false, err
	}
	c.logger.Debug("Access token refreshed")
	return true, nil
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	pair, err := Fetch[tokenPair](ctx, c, c.config.TokenPath, Options{
		Method:      http.MethodPost,
		Body:        map[string]string{"username": username, "password": password},
		NoAuth:      true,
		SkipRefresh: true,
	})
	if err != nil {
		return err
	}
	if pair == nil || pair.access() == "" {
		return fmt.Errorf("login response carried no access token")
	}
	return c.tokens.SetTokens(ctx, pair.access(), pair.refresh())
}

func (c *Client) Logout(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Clear(ctx)
}
