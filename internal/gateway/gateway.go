// Package gateway is the single path to the document store. It scopes every
// operation to the authenticated identity so no caller can forget to: creates
// are stamped with the owner, reads are filtered to it, and foreign documents
// come back as empty results rather than errors, to avoid leaking existence.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"centavo.app/internal/docstore"
	"centavo.app/internal/identity"
)

// ErrUnauthenticated is returned before any store call when the context
// carries no identity.
var ErrUnauthenticated = errors.New("gateway: unauthenticated")

// reserved names are managed by the gateway itself and are stripped from
// caller-supplied field maps. The owner in particular is immutable after
// creation.
var reserved = map[string]struct{}{
	"id":        {},
	"userId":    {},
	"createdAt": {},
	"updatedAt": {},
}

// Gateway decorates a docstore.Store with identity scoping and timestamping.
type Gateway struct {
	store docstore.Store
	now   func() time.Time
}

// Option configures Gateway behavior.
type Option func(*Gateway)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.now = fn
		}
	}
}

// New constructs a Gateway over the given store.
func New(store docstore.Store, opts ...Option) *Gateway {
	g := &Gateway{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create persists a new document stamped with the caller's identity and a
// creation timestamp.
func (g *Gateway) Create(ctx context.Context, collection string, fields map[string]any) (docstore.Document, error) {
	owner, ok := identity.UserIDFromContext(ctx)
	if !ok {
		return docstore.Document{}, ErrUnauthenticated
	}
	return g.store.Put(ctx, docstore.Document{
		Collection: collection,
		Owner:      owner,
		Fields:     sanitize(fields),
		CreatedAt:  g.now().UTC(),
	})
}

// List returns the caller's documents matching the given equality filters,
// optionally ordered by a single field. The owner filter is always implied.
func (g *Gateway) List(ctx context.Context, collection string, filters []docstore.Filter, order *docstore.Order) ([]docstore.Document, error) {
	owner, ok := identity.UserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return g.store.Query(ctx, collection, owner, filters, order)
}

// GetOne fetches a single document by ID. Absent documents and documents
// owned by another identity both yield (zero, false, nil).
func (g *Gateway) GetOne(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	owner, ok := identity.UserIDFromContext(ctx)
	if !ok {
		return docstore.Document{}, false, ErrUnauthenticated
	}
	doc, err := g.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, false, nil
	}
	if err != nil {
		return docstore.Document{}, false, err
	}
	if doc.Owner != owner {
		slog.Warn("blocked access to foreign document", "collection", collection, "id", id)
		return docstore.Document{}, false, nil
	}
	return doc, true, nil
}

// Update applies a field patch to one of the caller's documents and stamps a
// modification timestamp. The original owner field is never altered; foreign
// and absent documents are indistinguishable.
func (g *Gateway) Update(ctx context.Context, collection, id string, patch map[string]any) (docstore.Document, error) {
	if err := g.ensureOwned(ctx, collection, id); err != nil {
		return docstore.Document{}, err
	}
	return g.store.Update(ctx, collection, id, sanitize(patch), g.now().UTC())
}

// Delete removes one of the caller's documents.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	if err := g.ensureOwned(ctx, collection, id); err != nil {
		return err
	}
	return g.store.Delete(ctx, collection, id)
}

func (g *Gateway) ensureOwned(ctx context.Context, collection, id string) error {
	owner, ok := identity.UserIDFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	doc, err := g.store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if doc.Owner != owner {
		slog.Warn("blocked write to foreign document", "collection", collection, "id", id)
		return docstore.ErrNotFound
	}
	return nil
}

func sanitize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := reserved[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}
