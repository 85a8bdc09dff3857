package cupid

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artemisdev/go-cupid-api-wrapper/internal"
	"github.com/artemisdev/go-cupid-api-wrapper/pkg/types"
)

const (
	// DefaultBaseURL is the default Cupid API base URL.
	DefaultBaseURL = "http://localhost:8000/"
	// DefaultUserAgent is the default user agent string.
	DefaultUserAgent = "go-cupid-api-wrapper/0.1"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds the configuration for the Cupid client. The zero value is
// usable; every field has a default.
type Config struct {
	// BaseURL of the Cupid API. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent string sent with every request. Defaults to DefaultUserAgent.
	UserAgent string

	// HTTPClient to use for requests. Defaults to a client with
	// DefaultTimeout. Customize this to set timeouts or proxies.
	HTTPClient *http.Client

	// Logger for structured diagnostics. Optional. If provided, debug
	// information is logged during API calls and token refreshes.
	Logger *slog.Logger

	// RequestsPerMinute caps steady-state request throughput per
	// authenticated session. Defaults to 60 if zero.
	RequestsPerMinute float64

	// RateLimitBurst allows short spikes above the steady-state rate.
	// Defaults to 10 if zero.
	RateLimitBurst int

	// ExpirySkew is how long before a session token's expiry it is
	// refreshed proactively. Defaults to 30 seconds if zero.
	ExpirySkew time.Duration
}

// Cupid is the entry point for interacting with the API. Obtain an *App or
// *UserSession from it and make all further calls through those.
type Cupid struct {
	config *Config
}

// New creates a Cupid client with the provided configuration. A nil config
// uses all defaults.
func New(config *Config) (*Cupid, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	// Validate the base URL up front rather than on the first request.
	if _, err := internal.NewClient(cfg.HTTPClient, nil, cfg.BaseURL, cfg.UserAgent, nil, nil); err != nil {
		return nil, err
	}

	return &Cupid{config: &cfg}, nil
}

func (c *Cupid) newTransport(tokens internal.TokenSource) (*internal.Client, error) {
	rateCfg := &internal.RateLimitConfig{
		RequestsPerMinute: c.config.RequestsPerMinute,
		Burst:             c.config.RateLimitBurst,
	}
	return internal.NewClient(c.config.HTTPClient, tokens, c.config.BaseURL, c.config.UserAgent, rateCfg, c.config.Logger)
}

// App authenticates with an app token and returns the app it belongs to.
func (c *Cupid) App(ctx context.Context, token string) (*App, error) {
	cred := internal.NewCredential(token, "", time.Time{}, c.config.ExpirySkew, c.config.Logger)
	transport, err := c.newTransport(cred)
	if err != nil {
		return nil, err
	}
	cred.SetRefreshFunc(appRefresh(transport))

	call := &caller{transport: transport, cred: cred}
	var model types.App
	if err := call.do(ctx, http.MethodGet, "auth/me", nil, &model); err != nil {
		return nil, err
	}

	return &App{c: call, model: model}, nil
}

// UserSession authenticates with a user session token and returns the
// session it belongs to.
func (c *Cupid) UserSession(ctx context.Context, token string) (*UserSession, error) {
	cred := internal.NewCredential(token, "", time.Time{}, c.config.ExpirySkew, c.config.Logger)
	transport, err := c.newTransport(cred)
	if err != nil {
		return nil, err
	}
	cred.SetRefreshFunc(sessionRefresh(transport))

	call := &caller{transport: transport, cred: cred}
	var model types.Session
	if err := call.do(ctx, http.MethodGet, "auth/me", nil, &model); err != nil {
		return nil, err
	}
	cred.Update(&internal.RefreshResult{Token: token, ExpiresAt: model.ExpiresAt})

	return newUserSession(call, model), nil
}

// DiscordAuthenticate exchanges a Discord OAuth2 bearer token for a new user
// session. Use DiscordOAuth to obtain the bearer token from an authorization
// code first, if needed.
func (c *Cupid) DiscordAuthenticate(ctx context.Context, discordToken string) (*UserSession, error) {
	login, err := c.newTransport(nil)
	if err != nil {
		return nil, err
	}

	var model types.SessionWithToken
	body := types.DiscordAuthenticate{Token: discordToken}
	if err := login.Do(ctx, http.MethodPost, "auth/login", body, &model, nil); err != nil {
		return nil, err
	}

	cred := internal.NewCredential(model.Token, model.RefreshToken, model.ExpiresAt, c.config.ExpirySkew, c.config.Logger)
	transport, err := c.newTransport(cred)
	if err != nil {
		return nil, err
	}
	cred.SetRefreshFunc(sessionRefresh(transport))

	return newUserSession(&caller{transport: transport, cred: cred}, model.Session), nil
}

// appRefresh rotates an app token via the auth endpoint, authorized by the
// refresh token.
func appRefresh(transport *internal.Client) internal.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (*internal.RefreshResult, error) {
		var rotated types.AppWithToken
		if err := transport.DoWithToken(ctx, http.MethodPatch, "auth/me", refreshToken, nil, &rotated); err != nil {
			return nil, err
		}
		return &internal.RefreshResult{Token: rotated.Token, RefreshToken: rotated.RefreshToken}, nil
	}
}

// sessionRefresh rotates a session token, carrying the new expiry forward.
func sessionRefresh(transport *internal.Client) internal.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (*internal.RefreshResult, error) {
		var rotated types.SessionWithToken
		if err := transport.DoWithToken(ctx, http.MethodPatch, "auth/me", refreshToken, nil, &rotated); err != nil {
			return nil, err
		}
		return &internal.RefreshResult{
			Token:        rotated.Token,
			RefreshToken: rotated.RefreshToken,
			ExpiresAt:    rotated.ExpiresAt,
		}, nil
	}
}

// caller binds a transport to the credential that fetched a resource, plus
// any extra headers (the Cupid-User header for app-on-behalf-of-user calls).
// Every method on a resource view goes through its caller, never a freshly
// supplied credential.
type caller struct {
	transport *internal.Client
	cred      *internal.Credential
	header    http.Header
}

func (c *caller) do(ctx context.Context, method, path string, body, v any) error {
	return c.transport.Do(ctx, method, path, body, v, c.header)
}

// asUser returns a caller that acts on behalf of the given user. Only
// meaningful for app credentials; the server authorizes the combination.
func (c *caller) asUser(id int64) *caller {
	header := http.Header{}
	for key, values := range c.header {
		header[key] = values
	}
	header.Set("Cupid-User", strconv.FormatInt(id, 10))
	return &caller{transport: c.transport, cred: c.cred, header: header}
}
