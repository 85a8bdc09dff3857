// Package types contains the JSON models accepted and returned by the Cupid API.
package types

import (
	"fmt"
	"time"
)

// Gender is the gender of a user.
type Gender string

const (
	GenderNonBinary Gender = "non_binary"
	GenderFemale    Gender = "female"
	GenderMale      Gender = "male"
)

// Valid reports whether g is one of the genders the API accepts.
func (g Gender) Valid() bool {
	switch g {
	case GenderNonBinary, GenderFemale, GenderMale:
		return true
	}
	return false
}

// RelationshipKind is the type of a relationship.
type RelationshipKind string

const (
	RelationshipMarriage RelationshipKind = "marriage"
	RelationshipAdoption RelationshipKind = "adoption"
)

// Valid reports whether k is one of the kinds the API accepts.
func (k RelationshipKind) Valid() bool {
	switch k {
	case RelationshipMarriage, RelationshipAdoption:
		return true
	}
	return false
}

// UserData holds the fields of a user other than its ID. It is also the body
// of the app user-upsert endpoint.
type UserData struct {
	Name          string `json:"name"`
	Discriminator string `json:"discriminator"`
	AvatarURL     string `json:"avatar_url"`
	Gender        Gender `json:"gender"`
}

// User is a user as returned by the API. It is an immutable snapshot of
// server state at fetch time.
type User struct {
	ID int64 `json:"id"`
	UserData
}

// Relationship is the full data for a relationship between two users.
type Relationship struct {
	ID         int64            `json:"id"`
	Initiator  User             `json:"initiator"`
	Other      User             `json:"other"`
	Kind       RelationshipKind `json:"kind"`
	Accepted   bool             `json:"accepted"`
	CreatedAt  time.Time        `json:"created_at"`
	AcceptedAt *time.Time       `json:"accepted_at"`
}

// Validate checks the invariants the client relies on: AcceptedAt must be set
// exactly when Accepted is true.
func (r *Relationship) Validate() error {
	if r.Accepted && r.AcceptedAt == nil {
		return fmt.Errorf("relationship %d is accepted but has no accepted_at", r.ID)
	}
	if !r.Accepted && r.AcceptedAt != nil {
		return fmt.Errorf("relationship %d is not accepted but has accepted_at", r.ID)
	}
	return nil
}

// PartialRelationship is a relationship as it appears in graph responses,
// referencing its two users by ID. Only accepted relationships appear in
// graphs.
type PartialRelationship struct {
	ID         int64            `json:"id"`
	Initiator  int64            `json:"initiator"`
	Other      int64            `json:"other"`
	Kind       RelationshipKind `json:"kind"`
	CreatedAt  time.Time        `json:"created_at"`
	AcceptedAt time.Time        `json:"accepted_at"`
}

// UserRelationships groups all of a user's relationships by state.
type UserRelationships struct {
	Accepted []Relationship `json:"accepted"`
	Incoming []Relationship `json:"incoming"`
	Outgoing []Relationship `json:"outgoing"`
}

// UserWithRelationships is a user together with all of their relationships,
// as returned by the single-user endpoint.
type UserWithRelationships struct {
	User          User              `json:"user"`
	Relationships UserRelationships `json:"relationships"`
}

// GraphData is the raw payload of a graph endpoint: every user keyed by ID
// plus the accepted relationships among them.
type GraphData struct {
	Users         map[int64]User        `json:"users"`
	Relationships []PartialRelationship `json:"relationships"`
}

// PaginatedUsers is one page of a paginated user listing.
type PaginatedUsers struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Pages   int    `json:"pages"`
	Total   int    `json:"total"`
	Users   []User `json:"users"`
}

// Session is a user authentication session.
type Session struct {
	ID        int64     `json:"id"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionWithToken is a session including its bearer and refresh tokens, as
// returned by login and token rotation.
type SessionWithToken struct {
	Session
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// App is a registered API application.
type App struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AppWithToken is an app including its bearer and refresh tokens, as
// returned by token rotation.
type AppWithToken struct {
	App
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// DiscordAuthenticate is the body of a Discord login request.
type DiscordAuthenticate struct {
	Token string `json:"token"`
}

// RelationshipCreate is the body of a relationship proposal.
type RelationshipCreate struct {
	Kind RelationshipKind `json:"kind"`
}

// GenderUpdate is the body of a gender change request.
type GenderUpdate struct {
	Gender Gender `json:"gender"`
}
