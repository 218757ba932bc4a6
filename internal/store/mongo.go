package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements DocumentStore on a MongoDB database. Each record
// type maps to its own collection; documents are keyed by _id.
type MongoStore struct {
	client *mongo.Client
	dbName string
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, dbName: dbName}, nil
}

// Upsert replaces the document with the given id, inserting if absent.
func (m *MongoStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	replacement := bson.M{"_id": id}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		replacement[k] = v
	}

	coll := m.client.Database(m.dbName).Collection(collection)
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, replacement,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// IDs lists every document id in a collection.
func (m *MongoStore) IDs(ctx context.Context, collection string) ([]string, error) {
	coll := m.client.Database(m.dbName).Collection(collection)

	cursor, err := coll.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list ids %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", collection, err)
	}
	return ids, nil
}

// Ping verifies connectivity for health checks.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
