package board

import (
	"context"
	"fmt"

	"issueboard/internal/feed"
	"issueboard/internal/models"
)

// Gate tracks the signed-in identity and holds the issue subscription open
// only while an identity is present.
type Gate struct {
	store    Subscriber
	identity *models.Identity
	resolved bool
	sub      *feed.Subscription
}

// NewGate returns an unresolved gate.
func NewGate(store Subscriber) *Gate {
	return &Gate{store: store}
}

// Resolved reports whether the identity has been determined, present or not.
func (g *Gate) Resolved() bool { return g.resolved }

// Identity returns the current identity, if any.
func (g *Gate) Identity() (models.Identity, bool) {
	if g.identity == nil {
		return models.Identity{}, false
	}
	return *g.identity, true
}

// Change applies an identity change notification. A nil identity means signed out.
func (g *Gate) Change(ctx context.Context, id *models.Identity) error {
	g.resolved = true
	if id == nil {
		g.release()
		g.identity = nil
		return nil
	}

	next := *id
	if g.identity != nil && g.identity.ID == next.ID && g.sub != nil {
		g.identity = &next
		return nil
	}

	g.release()
	g.identity = &next
	sub, err := g.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("open issue subscription: %w", err)
	}
	g.sub = sub
	return nil
}

// Snapshots returns the live snapshot stream, or nil while nobody is signed in.
// Receiving from the nil channel blocks forever, which keeps select loops simple.
func (g *Gate) Snapshots() <-chan []models.Issue {
	if g.sub == nil {
		return nil
	}
	return g.sub.C()
}

// Close releases the subscription unconditionally.
func (g *Gate) Close() {
	g.release()
}

func (g *Gate) release() {
	if g.sub != nil {
		g.sub.Close()
		g.sub = nil
	}
}
