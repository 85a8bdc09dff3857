package cupid

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
	"github.com/artemisdev/go-cupid-api-wrapper/pkg/types"
)

// Relationship is a read-only view of a relationship between two users.
type Relationship struct {
	c     *caller
	model types.Relationship
}

func newRelationship(c *caller, model types.Relationship) (*Relationship, error) {
	if err := model.Validate(); err != nil {
		return nil, &pkgerrs.DataIntegrityError{Message: err.Error()}
	}
	return &Relationship{c: c, model: model}, nil
}

func newRelationships(c *caller, models []types.Relationship) ([]*Relationship, error) {
	out := make([]*Relationship, len(models))
	for i, model := range models {
		rel, err := newRelationship(c, model)
		if err != nil {
			return nil, err
		}
		out[i] = rel
	}
	return out, nil
}

// ID returns the relationship's ID.
func (r *Relationship) ID() int64 { return r.model.ID }

// Initiator returns the user who proposed the relationship.
func (r *Relationship) Initiator() types.User { return r.model.Initiator }

// Other returns the user the relationship was proposed to.
func (r *Relationship) Other() types.User { return r.model.Other }

// Kind returns the relationship's kind.
func (r *Relationship) Kind() types.RelationshipKind { return r.model.Kind }

// Accepted reports whether the proposal has been accepted.
func (r *Relationship) Accepted() bool { return r.model.Accepted }

// CreatedAt returns when the relationship was proposed.
func (r *Relationship) CreatedAt() time.Time { return r.model.CreatedAt }

// AcceptedAt returns when the proposal was accepted, or nil while pending.
func (r *Relationship) AcceptedAt() *time.Time {
	if r.model.AcceptedAt == nil {
		return nil
	}
	t := *r.model.AcceptedAt
	return &t
}

// OwnRelationship is a relationship the authenticated user is a party to,
// with permission to accept or delete it.
type OwnRelationship struct {
	Relationship
	ownID   int64
	invalid atomic.Bool
}

func newOwnRelationship(c *caller, model types.Relationship, ownID int64) (*OwnRelationship, error) {
	rel, err := newRelationship(c, model)
	if err != nil {
		return nil, err
	}
	return &OwnRelationship{Relationship: *rel, ownID: ownID}, nil
}

func newOwnRelationships(c *caller, models []types.Relationship, ownID int64) ([]*OwnRelationship, error) {
	out := make([]*OwnRelationship, len(models))
	for i, model := range models {
		rel, err := newOwnRelationship(c, model, ownID)
		if err != nil {
			return nil, err
		}
		out[i] = rel
	}
	return out, nil
}

// oppositeID is the other party's user ID, whichever side we are on.
func (r *OwnRelationship) oppositeID() int64 {
	if r.model.Other.ID == r.ownID {
		return r.model.Initiator.ID
	}
	return r.model.Other.ID
}

// Accept accepts the proposal and updates this view in place. Fails if the
// authenticated user is the initiator or the relationship is already
// accepted; the server's error is surfaced.
func (r *OwnRelationship) Accept(ctx context.Context) error {
	if err := r.ensureUsable("Accept"); err != nil {
		return err
	}
	var model types.Relationship
	path := fmt.Sprintf("user/%d/relationship/accept", r.oppositeID())
	if err := r.c.do(ctx, http.MethodPost, path, nil, &model); err != nil {
		return err
	}
	if err := model.Validate(); err != nil {
		return &pkgerrs.DataIntegrityError{Message: err.Error()}
	}
	r.model = model
	return nil
}

// Delete removes the relationship: rejection if it is still a proposal,
// leaving it if it has been accepted. This instance becomes unusable; other
// views of the same relationship remain usable until the server rejects
// them.
func (r *OwnRelationship) Delete(ctx context.Context) error {
	if err := r.ensureUsable("Delete"); err != nil {
		return err
	}
	path := fmt.Sprintf("user/%d/relationship", r.oppositeID())
	if err := r.c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	r.invalid.Store(true)
	return nil
}

func (r *OwnRelationship) ensureUsable(op string) error {
	if r.invalid.Load() {
		return &pkgerrs.StateError{Operation: op, Message: "resource invalidated"}
	}
	return nil
}
