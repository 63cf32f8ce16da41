// Package services implements the issue triage, work order and application
// approval workflows on top of the store, identity and notification ports.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"civicsync/models"
	"civicsync/notify"
	"civicsync/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a time-ordered listing.
type Page struct {
	Limit int64
	Skip  int64
}

func (p Page) normalized() Page {
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// Options carries the collaborators shared by every service.
type Options struct {
	Store  store.Store
	Sink   notify.Sink
	Logger *slog.Logger
	Now    func() time.Time
}

type base struct {
	store  store.Store
	sink   notify.Sink
	logger *slog.Logger
	clock  func() time.Time
}

func newBase(o Options) base {
	b := base{store: o.Store, sink: o.Sink, logger: o.Logger, clock: o.Now}
	if b.sink == nil {
		b.sink = notify.LogSink{Logger: o.Logger}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

// now is UTC at store precision, so values returned to callers equal what
// a later read yields.
func (b base) now() time.Time {
	return b.clock().UTC().Truncate(time.Millisecond)
}

func (b base) get(ctx context.Context, collection, id, what string, out any) error {
	if id == "" {
		return models.Validationf("%s id is required", what)
	}
	err := b.store.Get(ctx, collection, id, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return models.NotFoundf("%s %s not found", what, id)
	default:
		return models.Upstream("load "+what, err)
	}
}

func (b base) create(ctx context.Context, collection, id, what string, doc any) error {
	err := b.store.Create(ctx, collection, id, doc)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		return models.Conflictf("%s %s already exists", what, id)
	default:
		return models.Upstream("create "+what, err)
	}
}

// update applies patch when match still holds; a failed precondition means
// someone else changed the document since it was read.
func (b base) update(ctx context.Context, collection, id, what string, match store.Filter, patch store.Patch) error {
	err := b.store.Update(ctx, collection, id, match, patch)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return models.NotFoundf("%s %s not found", what, id)
	case errors.Is(err, store.ErrConflict):
		return models.Conflictf("%s %s was modified concurrently", what, id)
	default:
		return models.Upstream("update "+what, err)
	}
}

func (b base) remove(ctx context.Context, collection, id, what string) error {
	err := b.store.Delete(ctx, collection, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return models.NotFoundf("%s %s not found", what, id)
	default:
		return models.Upstream("delete "+what, err)
	}
}

// list is the only operation retried: listings are idempotent reads.
func (b base) list(ctx context.Context, collection string, q store.Query, out any) error {
	err := b.store.List(ctx, collection, q, out)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return models.Upstream("list "+collection, err)
	}
	b.logger.WarnContext(ctx, "listing failed, retrying once", "collection", collection, "error", err)
	if err := b.store.List(ctx, collection, q, out); err != nil {
		return models.Upstream("list "+collection, err)
	}
	return nil
}

// openForIssue reports whether the issue has a non-terminal work order.
func (b base) openForIssue(ctx context.Context, issueID string) (bool, error) {
	var orders []models.WorkOrder
	if err := b.list(ctx, store.WorkOrders, store.Query{Filter: store.Filter{"issueId": issueID}}, &orders); err != nil {
		return false, err
	}
	for _, wo := range orders {
		if !wo.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (b base) notify(ctx context.Context, userID string, event notify.Event) {
	if userID == "" {
		return
	}
	if event.At.IsZero() {
		event.At = b.now()
	}
	if err := b.sink.Publish(ctx, userID, event); err != nil {
		b.logger.WarnContext(ctx, "notification not delivered",
			"user_id", userID, "type", event.Type, "error", err)
	}
}
