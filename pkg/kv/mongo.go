package kv

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultMongoDatabase   = "securestop"
	defaultMongoCollection = "kv"
)

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key in a single collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo connects to mongoURI and returns a store backed by its kv collection.
// The database name comes from the URI and defaults to "securestop".
func ConnectMongo(ctx context.Context, mongoURI string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(mongoURI)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid MongoDB URI")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, goerr.Wrap(err, "failed to ping MongoDB")
	}

	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	return NewMongoStore(client, client.Database(dbName).Collection(defaultMongoCollection)), nil
}

func NewMongoStore(client *mongo.Client, collection *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, collection: collection}
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "mongo find failed", goerr.V("key", key))
	}
	return []byte(doc.Value), true, nil
}

func (m *MongoStore) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	doc := kvDocument{Key: key, Value: string(data), UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return goerr.Wrap(err, "mongo upsert failed", goerr.V("key", key))
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return goerr.Wrap(err, "mongo delete failed", goerr.V("key", key))
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
