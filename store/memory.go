package store

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MemoryStore is an in-process Store. Documents are kept bson-encoded so
// filtering, ordering and decoding behave like the Mongo implementation.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
	unique      map[string][]string
}

// NewMemoryStore returns an empty store enforcing the same unique
// constraints EnsureIndexes creates in MongoDB.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]bson.Raw),
		unique:      make(map[string][]string),
	}
	for _, idx := range indexes {
		if idx.unique && len(idx.keys) == 1 {
			s.unique[idx.collection] = append(s.unique[idx.collection], idx.keys[0].Key)
		}
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", collection, err)
	}
	if got, ok := bson.Raw(raw).Lookup("_id").StringValueOK(); !ok || got != id {
		return fmt.Errorf("%s document _id %q does not match %q", collection, got, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	if _, exists := docs[id]; exists {
		return ErrConflict
	}
	if s.violatesUnique(collection, id, raw) {
		return ErrConflict
	}
	docs[id] = raw
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	raw, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return bson.Unmarshal(raw, out)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, match Filter, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	raw, ok := docs[id]
	if !ok {
		return ErrNotFound
	}
	if !matches(raw, match) {
		return ErrConflict
	}

	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return err
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if k == "_id" {
			continue
		}
		i := slices.IndexFunc(doc, func(e bson.E) bool { return e.Key == k })
		if i >= 0 {
			doc[i].Value = patch[k]
		} else {
			doc = append(doc, bson.E{Key: k, Value: patch[k]})
		}
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s patch: %w", collection, err)
	}
	if s.violatesUnique(collection, id, updated) {
		return ErrConflict
	}
	docs[id] = updated
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if _, ok := docs[id]; !ok {
		return ErrNotFound
	}
	delete(docs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string, q Query, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("list %s: out must point to a slice, got %T", collection, out)
	}

	s.mu.RLock()
	type entry struct {
		id  string
		raw bson.Raw
	}
	var found []entry
	for id, raw := range s.collections[collection] {
		if matches(raw, q.Filter) {
			found = append(found, entry{id: id, raw: raw})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(found, func(a, b entry) int {
		c := 0
		if q.SortBy != "" {
			c = compareRaw(a.raw.Lookup(strings.Split(q.SortBy, ".")...), b.raw.Lookup(strings.Split(q.SortBy, ".")...))
		}
		if c == 0 {
			c = strings.Compare(a.id, b.id)
		}
		if q.Descending {
			return -c
		}
		return c
	})

	if q.Skip > 0 {
		if q.Skip >= int64(len(found)) {
			found = nil
		} else {
			found = found[q.Skip:]
		}
	}
	if q.Limit > 0 && int64(len(found)) > q.Limit {
		found = found[:q.Limit]
	}

	result := reflect.MakeSlice(target.Elem().Type(), 0, len(found))
	for _, e := range found {
		elem := reflect.New(result.Type().Elem())
		if err := bson.Unmarshal(e.raw, elem.Interface()); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, e.id, err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	target.Elem().Set(result)
	return nil
}

func (s *MemoryStore) collection(name string) map[string]bson.Raw {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]bson.Raw)
		s.collections[name] = docs
	}
	return docs
}

// violatesUnique reports whether raw repeats a unique field value held by
// another document. Missing and null values are exempt, like a sparse index.
func (s *MemoryStore) violatesUnique(collection, id string, raw bson.Raw) bool {
	for _, field := range s.unique[collection] {
		v, err := raw.LookupErr(strings.Split(field, ".")...)
		if err != nil || v.Type == bsontype.Null {
			continue
		}
		for otherID, other := range s.collections[collection] {
			if otherID == id {
				continue
			}
			ov, err := other.LookupErr(strings.Split(field, ".")...)
			if err == nil && rawEqual(v, ov) {
				return true
			}
		}
	}
	return false
}

func matches(raw bson.Raw, f Filter) bool {
	for path, want := range f {
		got, err := raw.LookupErr(strings.Split(path, ".")...)
		missing := err != nil
		candidates := []any{want}
		if in, ok := want.(AnyOf); ok {
			candidates = in
		}
		if !slices.ContainsFunc(candidates, func(c any) bool { return matchesValue(got, missing, c) }) {
			return false
		}
	}
	return true
}

func matchesValue(got bson.RawValue, missing bool, want any) bool {
	if missing {
		return want == nil
	}
	t, data, err := bson.MarshalValue(want)
	if err != nil {
		return false
	}
	return rawEqual(got, bson.RawValue{Type: t, Value: data})
}

func rawEqual(a, b bson.RawValue) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Int32:
		return float64(v.Int32()), true
	case bsontype.Int64:
		return float64(v.Int64()), true
	case bsontype.Double:
		return v.Double(), true
	}
	return 0, false
}

func compareRaw(a, b bson.RawValue) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return cmp.Compare(x, y)
		}
	}
	switch {
	case a.Type == bsontype.DateTime && b.Type == bsontype.DateTime:
		return cmp.Compare(a.DateTime(), b.DateTime())
	case a.Type == bsontype.String && b.Type == bsontype.String:
		return strings.Compare(a.StringValue(), b.StringValue())
	}
	// Missing values sort before present ones.
	return cmp.Compare(len(a.Value), len(b.Value))
}
