package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
)

// DefaultExpirySkew is how long before its expiry a token is refreshed.
const DefaultExpirySkew = 30 * time.Second

// RefreshResult is the outcome of a successful token rotation.
type RefreshResult struct {
	Token        string
	RefreshToken string
	// ExpiresAt is zero for credentials that do not expire (app tokens).
	ExpiresAt time.Time
}

// RefreshFunc performs the actual rotation call, authorized by the refresh
// token rather than the (possibly expired) access token.
type RefreshFunc func(ctx context.Context, refreshToken string) (*RefreshResult, error)

// Credential owns a bearer token and its refresh state. It hands out a valid
// token before every authenticated request, refreshing proactively when the
// expiry is within the skew window. Concurrent refreshes are collapsed into a
// single call; all waiters share its result.
//
// A credential becomes permanently unusable in two cases: the server rejects
// a refresh (revoked or invalid refresh token), or Close is called. After
// that every Token call fails immediately without a network call.
type Credential struct {
	mu           sync.Mutex
	token        string
	refreshToken string
	expiresAt    time.Time
	skew         time.Duration
	invalid      error
	refresh      RefreshFunc

	group  singleflight.Group
	logger *slog.Logger
}

// NewCredential creates a credential. A zero expiresAt means the token does
// not expire on its own (app tokens); refreshToken falls back to token when
// the server has not issued a separate one yet.
func NewCredential(token, refreshToken string, expiresAt time.Time, skew time.Duration, logger *slog.Logger) *Credential {
	if refreshToken == "" {
		refreshToken = token
	}
	if skew <= 0 {
		skew = DefaultExpirySkew
	}
	return &Credential{
		token:        token,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
		skew:         skew,
		logger:       logger,
	}
}

// SetRefreshFunc installs the rotation call. It must be called before the
// first Token call on an expiring credential; construction is split this way
// because the transport that performs the call is itself built around the
// credential.
func (c *Credential) SetRefreshFunc(fn RefreshFunc) {
	c.mu.Lock()
	c.refresh = fn
	c.mu.Unlock()
}

// Token returns a bearer token that is expected to be valid now. For
// expiring credentials it refreshes first when the expiry is within the skew
// window or already passed.
func (c *Credential) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.invalid != nil {
		err := c.invalid
		c.mu.Unlock()
		return "", err
	}
	token := c.token
	needsRefresh := !c.expiresAt.IsZero() && !time.Now().Add(c.skew).Before(c.expiresAt)
	c.mu.Unlock()

	if !needsRefresh {
		return token, nil
	}
	return c.doRefresh(ctx)
}

// RefreshStale refreshes the credential after the server rejected the given
// token with 401. If another caller already rotated the token, the fresh one
// is returned without a new refresh call. The transport uses this for its
// single refresh-and-retry.
func (c *Credential) RefreshStale(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	if c.invalid != nil {
		err := c.invalid
		c.mu.Unlock()
		return "", err
	}
	if c.token != stale {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()
	return c.doRefresh(ctx)
}

func (c *Credential) doRefresh(ctx context.Context) (string, error) {
	// Single-flight: concurrent callers attach to the in-flight refresh and
	// receive its result, success or failure.
	token, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.Lock()
		if c.invalid != nil {
			err := c.invalid
			c.mu.Unlock()
			return "", err
		}
		refresh := c.refresh
		refreshToken := c.refreshToken
		c.mu.Unlock()

		if refresh == nil {
			return "", &pkgerrs.StateError{Operation: "refresh", Message: "credential has no refresh function"}
		}

		if c.logger != nil {
			c.logger.Debug("refreshing credential")
		}
		res, err := refresh(ctx, refreshToken)
		if err != nil {
			var authErr *pkgerrs.AuthenticationError
			if errors.As(err, &authErr) {
				// The refresh token itself was rejected; no retry will succeed.
				c.markInvalid(&pkgerrs.AuthenticationError{Err: err})
				if c.logger != nil {
					c.logger.Warn("credential refresh rejected, marking invalid", "error", err)
				}
			}
			return "", err
		}

		c.mu.Lock()
		c.token = res.Token
		if res.RefreshToken != "" {
			c.refreshToken = res.RefreshToken
		}
		c.expiresAt = res.ExpiresAt
		c.mu.Unlock()
		return res.Token, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Update applies an explicitly requested rotation (the RefreshToken
// operation on apps and sessions).
func (c *Credential) Update(res *RefreshResult) {
	c.mu.Lock()
	c.token = res.Token
	if res.RefreshToken != "" {
		c.refreshToken = res.RefreshToken
	}
	c.expiresAt = res.ExpiresAt
	c.mu.Unlock()
}

// Close marks the credential permanently unusable. Pending and future
// requests deriving from it fail with a StateError.
func (c *Credential) Close(reason string) {
	c.markInvalid(&pkgerrs.StateError{Operation: "authenticate", Message: reason})
}

func (c *Credential) markInvalid(err error) {
	c.mu.Lock()
	if c.invalid == nil {
		c.invalid = err
	}
	c.mu.Unlock()
}

// Invalid returns the permanent failure recorded for this credential, or nil.
func (c *Credential) Invalid() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalid
}
