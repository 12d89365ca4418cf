package tracker

import (
	"context"
	"sync"

	"centavo.app/internal/gateway"
	"centavo.app/internal/identity"
	"centavo.app/internal/localstore"
)

// Registry owns one tracker per authenticated identity. Trackers are created
// when an identity authenticates (or on first use after a restart) and torn
// down when it signs out.
type Registry struct {
	gw    *gateway.Gateway
	local localstore.Store

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewRegistry(gw *gateway.Gateway, local localstore.Store) *Registry {
	return &Registry{
		gw:       gw,
		local:    local,
		trackers: make(map[string]*Tracker),
	}
}

// Run consumes identity transitions until the context ends. Meant to be
// started once, next to the HTTP server.
func (r *Registry) Run(ctx context.Context, stream *identity.Stream) {
	for st := range stream.Subscribe(ctx) {
		switch st.Phase {
		case identity.PhaseAuthenticated:
			r.Obtain(ctx, st.UserID)
		case identity.PhaseAnonymous:
			r.release(ctx, st.UserID)
		}
	}
}

// Obtain returns the identity's tracker, creating and initializing it if the
// identity has none yet. Sessions restored from a still-valid token after a
// restart take this path.
func (r *Registry) Obtain(ctx context.Context, owner string) *Tracker {
	r.mu.Lock()
	t, ok := r.trackers[owner]
	if !ok {
		t = New(r.gw, r.local, owner)
		r.trackers[owner] = t
	}
	r.mu.Unlock()

	if !ok {
		t.Init(identity.ContextWithUser(ctx, owner))
	}
	return t
}

func (r *Registry) release(ctx context.Context, owner string) {
	r.mu.Lock()
	t, ok := r.trackers[owner]
	delete(r.trackers, owner)
	r.mu.Unlock()

	ctx = identity.ContextWithUser(ctx, owner)
	if ok {
		t.Teardown(ctx)
		return
	}
	// No live tracker, but the persisted selection must still be cleared.
	New(r.gw, r.local, owner).Teardown(ctx)
}
