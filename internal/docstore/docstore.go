// Package docstore implements the document store the rest of the service is
// built on: schemaless records grouped into named collections, queried with
// equality filters and a single-field ordering.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

var (
	ErrNotFound      = errors.New("docstore: not found")
	ErrInvalidFilter = errors.New("docstore: unsupported filter operator")
)

// OpEqual is the only filter operator the store supports. Range operators
// would go here if a caller ever needs them.
const OpEqual = "=="

// Document is a single stored record. Owner and the timestamps live outside
// Fields so they cannot be clobbered by a field patch.
type Document struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Owner      string         `json:"userId"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt,omitempty"`
}

// Field returns a named field value. The reserved names id, userId, createdAt
// and updatedAt resolve to the document envelope rather than the field map.
func (d Document) Field(name string) any {
	switch name {
	case "id":
		return d.ID
	case "userId":
		return d.Owner
	case "createdAt":
		return d.CreatedAt
	case "updatedAt":
		return d.UpdatedAt
	}
	return d.Fields[name]
}

// Filter is an equality constraint on a document field.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order names the field query results are sorted by.
type Order struct {
	Field string
	Desc  bool
}

// Store is the persistence contract shared by the in-memory and Postgres
// backends. Owner scoping is the gateway's job; Query merely restricts to the
// given owner when one is passed (empty owner means unrestricted, which only
// the identity subsystem uses for email lookups).
type Store interface {
	Put(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection, owner string, filters []Filter, order *Order) ([]Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]any, updatedAt time.Time) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// MatchesFilters reports whether the document satisfies every filter.
func MatchesFilters(doc Document, filters []Filter) (bool, error) {
	for _, f := range filters {
		if f.Op != OpEqual {
			return false, fmt.Errorf("%w: %q", ErrInvalidFilter, f.Op)
		}
		if !equalValues(doc.Field(f.Field), f.Value) {
			return false, nil
		}
	}
	return true, nil
}

// SortDocuments orders documents in place by the given field.
func SortDocuments(docs []Document, order *Order) {
	if order == nil || order.Field == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		less := lessValues(docs[i].Field(order.Field), docs[j].Field(order.Field))
		if order.Desc {
			return lessValues(docs[j].Field(order.Field), docs[i].Field(order.Field))
		}
		return less
	})
}

// equalValues compares loosely: any numeric representations are equal when
// their values are, mirroring how JSON round-trips turn ints into floats.
func equalValues(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

func lessValues(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af < bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Before(bv)
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
