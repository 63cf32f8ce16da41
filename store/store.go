// Package store is the persistence port used by the services. Documents are
// bson-tagged structs keyed by a string "_id".
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names
const (
	Issues          = "issues"
	Responses       = "responses"
	WorkOrders      = "workorders"
	WorkOrderEvents = "workorder_events"
	Applications    = "applications"
	Accounts        = "accounts"
	Identities      = "identities"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an id already exists on Create or when the
	// match conditions of Update do not hold for an existing document.
	ErrConflict = errors.New("document conflict")
)

// Filter is a set of equality conditions. Keys may use dotted paths into
// embedded documents ("jurisdiction.districtKey"). An AnyOf value matches
// when the field equals any of its elements.
type Filter map[string]any

type AnyOf []any

// Patch is a set of top-level fields to overwrite.
type Patch map[string]any

// Query describes a filtered, ordered, paged listing.
type Query struct {
	Filter     Filter
	SortBy     string
	Descending bool
	Skip       int64
	Limit      int64
}

// Store is a document store with compare-and-swap updates.
type Store interface {
	Create(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string, out any) error
	// Update applies patch to the document when every condition in match
	// holds. An empty match updates unconditionally.
	Update(ctx context.Context, collection, id string, match Filter, patch Patch) error
	Delete(ctx context.Context, collection, id string) error
	// List decodes matching documents into out, which must point to a slice.
	List(ctx context.Context, collection string, q Query, out any) error
}

// NewID returns a fresh document id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
