package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type indexSpec struct {
	collection string
	keys       bson.D
	unique     bool
}

var indexes = []indexSpec{
	// Jurisdiction listing is an equality query on the normalized keys.
	{collection: Issues, keys: bson.D{{Key: "jurisdiction.districtKey", Value: 1}, {Key: "jurisdiction.stateKey", Value: 1}, {Key: "createdAt", Value: -1}}},
	{collection: Issues, keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{collection: Responses, keys: bson.D{{Key: "issueId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{collection: WorkOrders, keys: bson.D{{Key: "department", Value: 1}, {Key: "assignedAt", Value: -1}}},
	{collection: WorkOrders, keys: bson.D{{Key: "mlaId", Value: 1}, {Key: "assignedAt", Value: -1}}},
	{collection: WorkOrders, keys: bson.D{{Key: "issueId", Value: 1}}},
	{collection: WorkOrderEvents, keys: bson.D{{Key: "workOrderId", Value: 1}, {Key: "at", Value: 1}}},
	{collection: Applications, keys: bson.D{{Key: "applicantEmail", Value: 1}, {Key: "verificationStatus", Value: 1}}},
	{collection: Applications, keys: bson.D{{Key: "verificationStatus", Value: 1}, {Key: "appliedAt", Value: -1}}},
	{collection: Accounts, keys: bson.D{{Key: "identityId", Value: 1}}, unique: true},
	{collection: Accounts, keys: bson.D{{Key: "applicationId", Value: 1}}, unique: true},
	{collection: Accounts, keys: bson.D{{Key: "email", Value: 1}}},
	{collection: Identities, keys: bson.D{{Key: "email", Value: 1}}, unique: true},
}

// EnsureIndexes creates the indexes the services' queries and uniqueness
// guarantees rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, idx := range indexes {
		opts := options.Index()
		if idx.unique {
			// Unique indexes are sparse: citizen accounts carry no applicationId.
			opts.SetUnique(true).SetSparse(true)
		}
		model := mongo.IndexModel{Keys: idx.keys, Options: opts}
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}
