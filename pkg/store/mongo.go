package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

// MongoStore persists boards in a MongoDB collection, one document per
// project keyed by _id. The hosted service's system of record.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and returns a store over the given
// database and collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Load fetches the persisted board for a project.
func (s *MongoStore) Load(ctx context.Context, projectID string) (*Row, error) {
	var row Row
	err := s.coll.FindOne(ctx, bson.M{"_id": projectID}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "no board for project %s", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load board for project %s", projectID)
	}
	return &row, nil
}

// Save upserts the board for a project.
func (s *MongoStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": projectID}, newRow(projectID, snapshot),
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeSaveFailed, err, "save board for project %s", projectID)
	}
	return nil
}

// Delete removes the board for a project.
func (s *MongoStore) Delete(ctx context.Context, projectID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": projectID})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete board for project %s", projectID)
	}
	return nil
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
