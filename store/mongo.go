package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
}

func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MongoStore{db: db, timeout: timeout}
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, match Filter, patch Patch) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coll := s.db.Collection(collection)
	filter := toBSON(match)
	filter["_id"] = id
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M(patch)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Tell a missing document apart from a failed precondition.
	count, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string, q Query, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	findOptions := options.Find()
	if q.SortBy != "" {
		direction := 1
		if q.Descending {
			direction = -1
		}
		findOptions.SetSort(bson.D{{Key: q.SortBy, Value: direction}, {Key: "_id", Value: direction}})
	}
	if q.Skip > 0 {
		findOptions.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		findOptions.SetLimit(q.Limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, toBSON(q.Filter), findOptions)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

func toBSON(f Filter) bson.M {
	filter := bson.M{}
	for k, v := range f {
		if in, ok := v.(AnyOf); ok {
			filter[k] = bson.M{"$in": []any(in)}
			continue
		}
		filter[k] = v
	}
	return filter
}
