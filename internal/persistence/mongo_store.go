package persistence

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStateStore is a StateStore backed by a MongoDB collection with one
// document per key.
type MongoStateStore struct {
	coll *mongo.Collection
}

// Ensure it implements StateStore.
var _ StateStore = (*MongoStateStore)(nil)

// NewMongoStateStore creates a Mongo-backed state store.
// dbName defaults to "flowcanvas" if empty, collName defaults to "canvas_state".
func NewMongoStateStore(client *mongo.Client, dbName, collName string) *MongoStateStore {
	if dbName == "" {
		dbName = "flowcanvas"
	}
	if collName == "" {
		collName = "canvas_state"
	}

	return &MongoStateStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoStateDoc struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *MongoStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc mongoStateDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	if doc.Value == nil {
		return []byte{}, nil
	}
	return doc.Value, nil
}

func (s *MongoStateStore) Save(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	doc := mongoStateDoc{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStateStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (s *MongoStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	keys := []string{}
	for cur.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.Key)
	}
	return keys, cur.Err()
}
