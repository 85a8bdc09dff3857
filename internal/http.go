package internal

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
)

// TokenSource supplies a valid bearer token for authenticated requests.
// *Credential implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// staleRefresher is implemented by token sources that can rotate a token the
// server has rejected. The transport uses it for its single
// refresh-and-retry after a 401.
type staleRefresher interface {
	RefreshStale(ctx context.Context, stale string) (string, error)
}

// RateLimitConfig controls how requests are throttled before reaching the API.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	secondsPerMinute         = 60.0
)

// Client manages communication with the Cupid API. A nil token source makes
// an unauthenticated client (used only for login).
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	tokens    TokenSource

	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient returns a new Cupid transport. If a nil httpClient is provided,
// http.DefaultClient will be used.
func NewClient(httpClient *http.Client, tokens TokenSource, baseURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		tokens:    tokens,
		limiter:   buildLimiter(*rateCfg),
		logger:    logger,
	}, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / secondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

// Do sends an API request with the client's credential and decodes the
// response into v (which may be nil for endpoints that return no body).
// A 401 triggers one refresh of the credential followed by one retry; every
// other error propagates unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body, v any, header http.Header) error {
	var token string
	if c.tokens != nil {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return err
		}
	}

	err := c.do(ctx, method, path, token, body, v, header)
	if err == nil {
		return nil
	}

	var authErr *pkgerrs.AuthenticationError
	if !errors.As(err, &authErr) {
		return err
	}
	refresher, ok := c.tokens.(staleRefresher)
	if !ok {
		return err
	}

	fresh, refreshErr := refresher.RefreshStale(ctx, token)
	if refreshErr != nil {
		return refreshErr
	}
	return c.do(ctx, method, path, fresh, body, v, header)
}

// DoWithToken sends a request authorized by an explicit bearer token,
// bypassing the token source. The credential refresh call itself uses this,
// authorized by the refresh token.
func (c *Client) DoWithToken(ctx context.Context, method, path, token string, body, v any) error {
	return c.do(ctx, method, path, token, body, v, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, v any, header http.Header) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
	}

	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("X-Request-Id", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Debug("cupid API request",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", requestID,
		)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pkgerrs.NetworkError{Operation: method + " " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	if v != nil {
		if err := json.Unmarshal(respBody, v); err != nil {
			return &pkgerrs.DataIntegrityError{
				Message: fmt.Sprintf("undecodable response for %s %s: %v", method, path, err),
			}
		}
	}

	return nil
}

// errorBody is the JSON body the API attaches to every error response.
type errorBody struct {
	Status      int                         `json:"status"`
	Description string                      `json:"description"`
	Message     string                      `json:"message"`
	Errors      []pkgerrs.ValidationProblem `json:"errors"`
}

// errorFromResponse maps a non-2xx status and its decoded body to a typed
// error. The body is best-effort: an undecodable body still yields the right
// error kind for the status.
func errorFromResponse(status int, body []byte) error {
	var decoded errorBody
	_ = json.Unmarshal(body, &decoded)

	apiErr := pkgerrs.APIError{
		StatusCode:  status,
		Description: decoded.Description,
		Message:     decoded.Message,
	}

	switch {
	case status >= 500:
		return &pkgerrs.ServerError{APIError: apiErr}
	case status == http.StatusUnauthorized:
		return &pkgerrs.AuthenticationError{APIError: apiErr}
	case status == http.StatusForbidden:
		return &pkgerrs.ForbiddenError{APIError: apiErr}
	case status == http.StatusNotFound:
		return &pkgerrs.NotFoundError{APIError: apiErr}
	case status == http.StatusConflict:
		return &pkgerrs.ConflictError{APIError: apiErr}
	case status == http.StatusUnprocessableEntity:
		return &pkgerrs.ValidationError{APIError: apiErr, Problems: decoded.Errors}
	default:
		return &pkgerrs.ClientError{APIError: apiErr}
	}
}
