package cupid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/artemisdev/go-cupid-api-wrapper/internal"
	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
	"github.com/artemisdev/go-cupid-api-wrapper/pkg/types"
)

// DefaultPerPage is the page size used by Users when none is given.
const DefaultPerPage = 20

// App is a registered application together with the credential it
// authenticated with. All methods use that credential.
type App struct {
	c       *caller
	model   types.App
	invalid atomic.Bool
}

// ID returns the app's ID.
func (a *App) ID() int64 { return a.model.ID }

// Name returns the app's name.
func (a *App) Name() string { return a.model.Name }

// RefreshToken explicitly rotates the app's token. The new token replaces
// the old one for all further calls made through this app.
func (a *App) RefreshToken(ctx context.Context) error {
	if err := a.ensureUsable("RefreshToken"); err != nil {
		return err
	}
	var rotated types.AppWithToken
	if err := a.c.do(ctx, http.MethodPatch, "auth/me", nil, &rotated); err != nil {
		return err
	}
	a.c.cred.Update(&internal.RefreshResult{Token: rotated.Token, RefreshToken: rotated.RefreshToken})
	a.model = rotated.App
	return nil
}

// Delete destroys the app server-side and invalidates its credential. Any
// request still deriving from this app fails afterwards.
func (a *App) Delete(ctx context.Context) error {
	if err := a.ensureUsable("Delete"); err != nil {
		return err
	}
	if err := a.c.do(ctx, http.MethodDelete, "auth/me", nil, nil); err != nil {
		return err
	}
	a.invalid.Store(true)
	a.c.cred.Close("app deleted")
	return nil
}

// GetUser fetches a user by ID. The returned view acts on the user's behalf
// using this app's credential and carries the user's relationships.
func (a *App) GetUser(ctx context.Context, id int64) (*UserAsApp, error) {
	if err := a.ensureUsable("GetUser"); err != nil {
		return nil, err
	}
	var model types.UserWithRelationships
	if err := a.c.do(ctx, http.MethodGet, fmt.Sprintf("user/%d", id), nil, &model); err != nil {
		return nil, err
	}
	return newUserAsApp(a.c.asUser(model.User.ID), model)
}

// SetUser creates or updates a user. Apps use this to register the users
// they act on behalf of.
func (a *App) SetUser(ctx context.Context, id int64, data types.UserData) (*UserAsApp, error) {
	if err := a.ensureUsable("SetUser"); err != nil {
		return nil, err
	}
	var model types.User
	if err := a.c.do(ctx, http.MethodPut, fmt.Sprintf("user/%d", id), data, &model); err != nil {
		return nil, err
	}
	user := &UserAsApp{}
	user.User = User{c: a.c.asUser(model.ID), model: model}
	return user, nil
}

// Users returns the paginated list of users matching a search string. An
// empty search matches every user. perPage <= 0 uses DefaultPerPage.
func (a *App) Users(search string, perPage int) *PagedList[*User] {
	return newUserList(a.c, search, perPage)
}

// Graph fetches the full graph of users and accepted relationships.
func (a *App) Graph(ctx context.Context) (*Graph, error) {
	if err := a.ensureUsable("Graph"); err != nil {
		return nil, err
	}
	return fetchGraph(ctx, a.c, "users/graph")
}

func (a *App) ensureUsable(op string) error {
	if a.invalid.Load() {
		return &pkgerrs.StateError{Operation: op, Message: "resource invalidated"}
	}
	return nil
}

// UserSession is a per-user authenticated session derived from Discord
// login, with a refreshable expiring token.
type UserSession struct {
	c       *caller
	model   types.Session
	me      *UserAsSelf
	invalid atomic.Bool
}

func newUserSession(c *caller, model types.Session) *UserSession {
	s := &UserSession{c: c, model: model}
	s.me = &UserAsSelf{User: User{c: c, model: model.User}}
	return s
}

// ID returns the session's ID.
func (s *UserSession) ID() int64 { return s.model.ID }

// ExpiresAt returns when the session's current token expires. The token is
// refreshed automatically before then; this is informational.
func (s *UserSession) ExpiresAt() time.Time { return s.model.ExpiresAt }

// Me returns the session's own user, with permission to act on their behalf.
func (s *UserSession) Me() *UserAsSelf { return s.me }

// RefreshToken explicitly rotates the session's token.
func (s *UserSession) RefreshToken(ctx context.Context) error {
	if err := s.ensureUsable("RefreshToken"); err != nil {
		return err
	}
	var rotated types.SessionWithToken
	if err := s.c.do(ctx, http.MethodPatch, "auth/me", nil, &rotated); err != nil {
		return err
	}
	s.c.cred.Update(&internal.RefreshResult{
		Token:        rotated.Token,
		RefreshToken: rotated.RefreshToken,
		ExpiresAt:    rotated.ExpiresAt,
	})
	s.model = rotated.Session
	return nil
}

// Delete destroys the session server-side and invalidates its credential.
func (s *UserSession) Delete(ctx context.Context) error {
	if err := s.ensureUsable("Delete"); err != nil {
		return err
	}
	if err := s.c.do(ctx, http.MethodDelete, "auth/me", nil, nil); err != nil {
		return err
	}
	s.invalid.Store(true)
	s.me.invalid.Store(true)
	s.c.cred.Close("session closed")
	return nil
}

// GetUser fetches a user by ID, with their relationships attached.
func (s *UserSession) GetUser(ctx context.Context, id int64) (*UserWithRelationships, error) {
	if err := s.ensureUsable("GetUser"); err != nil {
		return nil, err
	}
	var model types.UserWithRelationships
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("user/%d", id), nil, &model); err != nil {
		return nil, err
	}
	return newUserWithRelationships(s.c, model)
}

// Users returns the paginated list of users matching a search string. An
// empty search matches every user. perPage <= 0 uses DefaultPerPage.
func (s *UserSession) Users(search string, perPage int) *PagedList[*User] {
	return newUserList(s.c, search, perPage)
}

// Graph fetches the full graph of users and accepted relationships.
func (s *UserSession) Graph(ctx context.Context) (*Graph, error) {
	if err := s.ensureUsable("Graph"); err != nil {
		return nil, err
	}
	return fetchGraph(ctx, s.c, "users/graph")
}

func (s *UserSession) ensureUsable(op string) error {
	if s.invalid.Load() {
		return &pkgerrs.StateError{Operation: op, Message: "resource invalidated"}
	}
	return nil
}

// newUserList builds the paged list over the user search endpoint. Page
// fetches are lazy; nothing is requested until the list is first used.
func newUserList(c *caller, search string, perPage int) *PagedList[*User] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	fetch := func(ctx context.Context, page int) (*Page[*User], error) {
		path := fmt.Sprintf("users/list?per_page=%d&page=%d", perPage, page)
		if search != "" {
			path += "&search=" + url.QueryEscape(search)
		}
		var raw types.PaginatedUsers
		if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
			return nil, err
		}
		items := make([]*User, len(raw.Users))
		for i, model := range raw.Users {
			items[i] = &User{c: c, model: model}
		}
		return &Page[*User]{
			Number:       raw.Page,
			PerPage:      raw.PerPage,
			TotalPages:   raw.Pages,
			TotalResults: raw.Total,
			Items:        items,
		}, nil
	}
	return NewPagedList(perPage, fetch)
}
