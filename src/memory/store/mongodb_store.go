package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// MongoStore persists memories in a MongoDB collection. A counters
// collection hands out monotonically increasing int64 ids.
type MongoStore struct {
	client            *mongo.Client
	collection        *mongo.Collection
	counterCollection *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoStore{
		client:            client,
		collection:        db.Collection(collection),
		counterCollection: db.Collection("counters"),
	}, nil
}

func (ms *MongoStore) WriteMemory(ctx context.Context, rec model.MemoryRecord) (int64, error) {
	if ms == nil || ms.collection == nil {
		return 0, errors.New("nil mongo store")
	}
	if rec.UserID == "" {
		return 0, errors.New("memory record requires a user id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	id, err := ms.nextID(ctx)
	if err != nil {
		return 0, err
	}
	doc := bson.M{
		"_id":         id,
		"user_id":     rec.UserID,
		"session_id":  rec.SessionID,
		"memory_type": rec.MemoryType,
		"content":     rec.Content,
		"metadata":    rec.Metadata,
		"embedding":   float64Embedding(rec.Embedding),
		"created_at":  rec.CreatedAt,
	}
	if !rec.LastEmbedded.IsZero() {
		doc["last_embedded"] = rec.LastEmbedded
	}
	if _, err := ms.collection.InsertOne(ctx, doc); err != nil {
		return 0, err
	}
	return id, nil
}

func (ms *MongoStore) ListMemories(ctx context.Context, userID, sessionID string) ([]model.MemoryRecord, error) {
	if ms == nil || ms.collection == nil {
		return nil, errors.New("nil mongo store")
	}
	filter := bson.M{"user_id": userID}
	if sessionID != "" {
		filter["session_id"] = bson.M{"$in": bson.A{sessionID, ""}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := ms.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.MemoryRecord
	for cursor.Next(ctx) {
		var doc mongoMemoryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.record())
	}
	return out, cursor.Err()
}

func (ms *MongoStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, lastEmbedded time.Time) error {
	if ms == nil || ms.collection == nil {
		return errors.New("nil mongo store")
	}
	res, err := ms.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"embedding":     float64Embedding(embedding),
		"last_embedded": lastEmbedded,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("memory not found")
	}
	return nil
}

func (ms *MongoStore) DeleteMemory(ctx context.Context, ids []int64) error {
	if ms == nil || ms.collection == nil || len(ids) == 0 {
		return nil
	}
	_, err := ms.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (ms *MongoStore) Count(ctx context.Context, userID string) (int, error) {
	if ms == nil || ms.collection == nil {
		return 0, errors.New("nil mongo store")
	}
	n, err := ms.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	return int(n), err
}

// Close disconnects the underlying client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func (ms *MongoStore) nextID(ctx context.Context) (int64, error) {
	res := ms.counterCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": "memories"},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

type mongoMemoryDoc struct {
	ID           int64      `bson:"_id"`
	UserID       string     `bson:"user_id"`
	SessionID    string     `bson:"session_id"`
	MemoryType   string     `bson:"memory_type"`
	Content      string     `bson:"content"`
	Metadata     string     `bson:"metadata"`
	Embedding    []float64  `bson:"embedding"`
	CreatedAt    time.Time  `bson:"created_at"`
	LastEmbedded *time.Time `bson:"last_embedded"`
}

func (d mongoMemoryDoc) record() model.MemoryRecord {
	rec := model.MemoryRecord{
		ID:         d.ID,
		UserID:     d.UserID,
		SessionID:  d.SessionID,
		MemoryType: d.MemoryType,
		Content:    d.Content,
		Metadata:   d.Metadata,
		CreatedAt:  d.CreatedAt,
		Embedding:  float32Embedding(d.Embedding),
	}
	if d.LastEmbedded != nil {
		rec.LastEmbedded = *d.LastEmbedded
	}
	return rec
}

func float64Embedding(in []float32) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(in []float64) []float32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
