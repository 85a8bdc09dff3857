package cupid

import (
	"context"
	"fmt"
	"net/http"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
	"github.com/artemisdev/go-cupid-api-wrapper/pkg/types"
)

// Graph is a consistent snapshot of users and the accepted relationships
// among them. Every relationship's two parties are guaranteed to be present
// in Users.
type Graph struct {
	users         map[int64]*User
	relationships []*Relationship
}

// Users returns the graph's users keyed by ID. The map is shared with the
// graph; treat it as read-only.
func (g *Graph) Users() map[int64]*User { return g.users }

// User returns the graph's user with the given ID, if present.
func (g *Graph) User(id int64) (*User, bool) {
	u, ok := g.users[id]
	return u, ok
}

// Relationships returns the graph's relationships.
func (g *Graph) Relationships() []*Relationship { return g.relationships }

func fetchGraph(ctx context.Context, c *caller, path string) (*Graph, error) {
	var data types.GraphData
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return assembleGraph(c, &data)
}

// assembleGraph builds a Graph from a raw response. Any inconsistency fails
// the whole assembly: no partial graph is ever returned.
func assembleGraph(c *caller, data *types.GraphData) (*Graph, error) {
	users := make(map[int64]*User, len(data.Users))
	for id, model := range data.Users {
		if model.ID != id {
			return nil, &pkgerrs.DataIntegrityError{
				Message: fmt.Sprintf("graph user keyed as %d has id %d", id, model.ID),
			}
		}
		users[id] = &User{c: c, model: model}
	}

	seen := make(map[int64]types.PartialRelationship, len(data.Relationships))
	relationships := make([]*Relationship, 0, len(data.Relationships))
	for _, raw := range data.Relationships {
		if prev, ok := seen[raw.ID]; ok {
			if prev == raw {
				continue
			}
			return nil, &pkgerrs.DataIntegrityError{
				Message: fmt.Sprintf("graph contains relationship %d twice with differing content", raw.ID),
			}
		}
		seen[raw.ID] = raw

		initiator, ok := users[raw.Initiator]
		if !ok {
			return nil, &pkgerrs.DataIntegrityError{
				Message: fmt.Sprintf("relationship %d references unknown user %d", raw.ID, raw.Initiator),
			}
		}
		other, ok := users[raw.Other]
		if !ok {
			return nil, &pkgerrs.DataIntegrityError{
				Message: fmt.Sprintf("relationship %d references unknown user %d", raw.ID, raw.Other),
			}
		}

		// Only accepted relationships appear in graphs.
		acceptedAt := raw.AcceptedAt
		rel, err := newRelationship(c, types.Relationship{
			ID:         raw.ID,
			Initiator:  initiator.model,
			Other:      other.model,
			Kind:       raw.Kind,
			Accepted:   true,
			CreatedAt:  raw.CreatedAt,
			AcceptedAt: &acceptedAt,
		})
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, rel)
	}

	return &Graph{users: users, relationships: relationships}, nil
}
