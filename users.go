package cupid

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
	"github.com/artemisdev/go-cupid-api-wrapper/pkg/types"
)

// User is a read-only view of a user, bound to the credential that fetched
// it. The snapshot is immutable; re-fetch the user for fresh data.
type User struct {
	c     *caller
	model types.User
}

// ID returns the user's ID.
func (u *User) ID() int64 { return u.model.ID }

// Name returns the user's name.
func (u *User) Name() string { return u.model.Name }

// Discriminator returns the user's discriminator.
func (u *User) Discriminator() string { return u.model.Discriminator }

// AvatarURL returns the user's avatar URL.
func (u *User) AvatarURL() string { return u.model.AvatarURL }

// Gender returns the user's gender.
func (u *User) Gender() types.Gender { return u.model.Gender }

// Graph fetches the graph of all users related, even distantly, to this one.
func (u *User) Graph(ctx context.Context) (*Graph, error) {
	return fetchGraph(ctx, u.c, fmt.Sprintf("user/%d/graph", u.model.ID))
}

// UserAsSelf is a user the caller is allowed to act as: the session's own
// user, or any user when authenticated as an app. Deleting it invalidates
// this instance; further calls fail without a network request.
type UserAsSelf struct {
	User
	invalid atomic.Bool
}

// Propose proposes a relationship of the given kind to another user. The
// server rejects proposals that conflict with an existing pending or
// accepted relationship; that error is surfaced as a ConflictError.
func (u *UserAsSelf) Propose(ctx context.Context, otherID int64, kind types.RelationshipKind) (*OwnRelationship, error) {
	if err := u.ensureUsable("Propose"); err != nil {
		return nil, err
	}
	var model types.Relationship
	body := types.RelationshipCreate{Kind: kind}
	path := fmt.Sprintf("user/%d/relationship", otherID)
	if err := u.c.do(ctx, http.MethodPost, path, body, &model); err != nil {
		return nil, err
	}
	return newOwnRelationship(u.c, model, u.model.ID)
}

// Relationship fetches this user's relationship with another user.
func (u *UserAsSelf) Relationship(ctx context.Context, otherID int64) (*OwnRelationship, error) {
	if err := u.ensureUsable("Relationship"); err != nil {
		return nil, err
	}
	var model types.Relationship
	path := fmt.Sprintf("user/%d/relationship", otherID)
	if err := u.c.do(ctx, http.MethodGet, path, nil, &model); err != nil {
		return nil, err
	}
	return newOwnRelationship(u.c, model, u.model.ID)
}

// SetGender changes the user's gender and updates this view in place.
func (u *UserAsSelf) SetGender(ctx context.Context, gender types.Gender) error {
	if err := u.ensureUsable("SetGender"); err != nil {
		return err
	}
	var model types.User
	body := types.GenderUpdate{Gender: gender}
	if err := u.c.do(ctx, http.MethodPut, "users/me/gender", body, &model); err != nil {
		return err
	}
	u.model = model
	return nil
}

// Delete removes the user's account. This instance becomes unusable; other
// views of the same user remain usable until the server rejects them.
func (u *UserAsSelf) Delete(ctx context.Context) error {
	if err := u.ensureUsable("Delete"); err != nil {
		return err
	}
	if err := u.c.do(ctx, http.MethodDelete, "users/me", nil, nil); err != nil {
		return err
	}
	u.invalid.Store(true)
	return nil
}

func (u *UserAsSelf) ensureUsable(op string) error {
	if u.invalid.Load() {
		return &pkgerrs.StateError{Operation: op, Message: "resource invalidated"}
	}
	return nil
}

// UserEdit holds the fields of an app-side user edit. Nil fields keep their
// current value.
type UserEdit struct {
	Name          *string
	Discriminator *string
	AvatarURL     *string
	Gender        *types.Gender
}

// UserAsApp is a user view authorized by an app credential. In addition to
// acting as the user, the app can edit or delete them, and the view carries
// the relationship lists returned when the user was fetched.
type UserAsApp struct {
	UserAsSelf
	accepted []*OwnRelationship
	incoming []*OwnRelationship
	outgoing []*OwnRelationship
}

func newUserAsApp(c *caller, model types.UserWithRelationships) (*UserAsApp, error) {
	u := &UserAsApp{}
	u.User = User{c: c, model: model.User}

	var err error
	if u.accepted, err = newOwnRelationships(c, model.Relationships.Accepted, model.User.ID); err != nil {
		return nil, err
	}
	if u.incoming, err = newOwnRelationships(c, model.Relationships.Incoming, model.User.ID); err != nil {
		return nil, err
	}
	if u.outgoing, err = newOwnRelationships(c, model.Relationships.Outgoing, model.User.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// AcceptedRelationships returns the user's accepted relationships as of
// fetch time.
func (u *UserAsApp) AcceptedRelationships() []*OwnRelationship { return u.accepted }

// IncomingProposals returns proposals made to the user, as of fetch time.
func (u *UserAsApp) IncomingProposals() []*OwnRelationship { return u.incoming }

// OutgoingProposals returns proposals made by the user, as of fetch time.
func (u *UserAsApp) OutgoingProposals() []*OwnRelationship { return u.outgoing }

// Edit updates the user's fields, merging the given values with the current
// snapshot, and updates this view in place.
func (u *UserAsApp) Edit(ctx context.Context, edit UserEdit) error {
	if err := u.ensureUsable("Edit"); err != nil {
		return err
	}
	data := u.model.UserData
	if edit.Name != nil {
		data.Name = *edit.Name
	}
	if edit.Discriminator != nil {
		data.Discriminator = *edit.Discriminator
	}
	if edit.AvatarURL != nil {
		data.AvatarURL = *edit.AvatarURL
	}
	if edit.Gender != nil {
		data.Gender = *edit.Gender
	}

	var model types.User
	if err := u.c.do(ctx, http.MethodPut, fmt.Sprintf("user/%d", u.model.ID), data, &model); err != nil {
		return err
	}
	u.model = model
	return nil
}

// Delete removes the managed user. This instance becomes unusable.
func (u *UserAsApp) Delete(ctx context.Context) error {
	if err := u.ensureUsable("Delete"); err != nil {
		return err
	}
	if err := u.c.do(ctx, http.MethodDelete, fmt.Sprintf("user/%d", u.model.ID), nil, nil); err != nil {
		return err
	}
	u.invalid.Store(true)
	return nil
}

// UserWithRelationships is a user together with their relationships, as
// returned by graph-returning endpoints. The relationship lists are a
// snapshot from fetch time.
type UserWithRelationships struct {
	User
	accepted []*Relationship
	incoming []*Relationship
	outgoing []*Relationship
}

func newUserWithRelationships(c *caller, model types.UserWithRelationships) (*UserWithRelationships, error) {
	u := &UserWithRelationships{User: User{c: c, model: model.User}}

	var err error
	if u.accepted, err = newRelationships(c, model.Relationships.Accepted); err != nil {
		return nil, err
	}
	if u.incoming, err = newRelationships(c, model.Relationships.Incoming); err != nil {
		return nil, err
	}
	if u.outgoing, err = newRelationships(c, model.Relationships.Outgoing); err != nil {
		return nil, err
	}
	return u, nil
}

// AcceptedRelationships returns the user's accepted relationships.
func (u *UserWithRelationships) AcceptedRelationships() []*Relationship { return u.accepted }

// IncomingProposals returns proposals made to the user.
func (u *UserWithRelationships) IncomingProposals() []*Relationship { return u.incoming }

// OutgoingProposals returns proposals made by the user.
func (u *UserWithRelationships) OutgoingProposals() []*Relationship { return u.outgoing }
