// Package cupid provides a Go wrapper for the Cupid social-graph API.
//
// # Overview
//
// Cupid tracks users and the relationships (marriages and adoptions) among
// them. This package gives Go applications a typed interface over the API:
// authenticate as an app or as a user, manage users, propose and accept
// relationships, and walk paginated listings and relationship graphs.
//
// # Features
//
//   - App-token and Discord-derived user-session authentication
//   - Automatic token refresh with single-flight deduplication
//   - Lazy, cached pagination with flattening and iteration
//   - Typed errors for every API failure mode
//   - Built-in request rate limiting
//   - Structured logging support via Go's slog package
//
// # Quick Start
//
//	client, err := cupid.New(&cupid.Config{BaseURL: "https://cupid.example"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	app, err := client.App(ctx, "your-app-token")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	users, err := app.Users("", 20).Flatten(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Authentication Types
//
// App authentication uses a long-lived app token and can create, edit and
// act on behalf of any user the app manages. User sessions are created from
// Discord OAuth2 logins, carry an expiring token that the client refreshes
// automatically, and act only as the session's own user.
//
// # Resource Views
//
// Every object returned by the API is bound to the credential that fetched
// it. A *User can fetch its own relationship graph; a *UserAsSelf can
// propose, accept and leave relationships; a *UserAsApp can additionally be
// edited or deleted by the owning app. Deleting a view invalidates that
// instance locally: further calls on it fail immediately without touching
// the network.
//
// # Errors
//
// All failures are typed; see the pkg/errors package. Use errors.As to
// distinguish authentication failures, conflicts, validation problems,
// missing resources, server errors and client-detected data integrity
// violations.
package cupid
