package cupid

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
)

// discordEndpoint is Discord's OAuth2 endpoint pair.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// DiscordOAuth exchanges Discord authorization codes for the bearer tokens
// that Cupid.DiscordAuthenticate consumes. Applications that already hold a
// Discord bearer token do not need it.
type DiscordOAuth struct {
	config *oauth2.Config
}

// NewDiscordOAuth sets up the exchange with a Discord application's
// credentials. redirectURL must match one registered with Discord; the
// "identify" scope is always requested.
func NewDiscordOAuth(clientID, clientSecret, redirectURL string) *DiscordOAuth {
	return &DiscordOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     discordEndpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify"},
		},
	}
}

// StateToken generates a random state parameter for the authorization URL.
func (d *DiscordOAuth) StateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthURL returns the URL to redirect an end user to for authorization.
func (d *DiscordOAuth) AuthURL(state string) string {
	return d.config.AuthCodeURL(state)
}

// Exchange swaps an authorization code for a Discord bearer token.
func (d *DiscordOAuth) Exchange(ctx context.Context, code string) (string, error) {
	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return "", &pkgerrs.AuthenticationError{Err: err}
	}
	return token.AccessToken, nil
}

// Login performs the full flow: exchange the authorization code with Discord,
// then create a Cupid user session from the resulting bearer token.
func (d *DiscordOAuth) Login(ctx context.Context, client *Cupid, code string) (*UserSession, error) {
	bearer, err := d.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return client.DiscordAuthenticate(ctx, bearer)
}
