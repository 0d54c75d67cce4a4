// Package docstore wires the MongoDB document store.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

const (
	// UsersCollection stores user documents.
	UsersCollection = "users"
	// LeaveRequestsCollection stores leave request documents.
	LeaveRequestsCollection = "leave_requests"
)

// New connects to MongoDB and pings the primary.
func New(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("platform/docstore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("platform/docstore: ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_unique")},
		{Keys: bson.D{{Key: "roles", Value: 1}}, Options: options.Index().SetName("users_roles")},
	})
	if err != nil {
		return fmt.Errorf("platform/docstore: users indexes: %w", err)
	}
	_, err = db.Collection(LeaveRequestsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "employeeId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("leave_employee_created")},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("leave_status")},
	})
	if err != nil {
		return fmt.Errorf("platform/docstore: leave indexes: %w", err)
	}
	return nil
}

// ParseID converts a hex identifier. Malformed ids are reported as not found
// so that probing cannot distinguish them from missing documents.
func ParseID(raw, kind string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, httpx.Errorf(httpx.ErrNotFound, "%s not found", kind)
	}
	return id, nil
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
