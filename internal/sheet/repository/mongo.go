package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

// MongoStore stores each collection in the Mongo collection of the same name,
// with the integer id as _id. Ids come from a per-collection sequence in the
// "counters" collection, incremented atomically on the server, so concurrent
// inserts from any number of processes never collide.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (m *MongoStore) Get(ctx context.Context, c Collection, id int, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	err := m.db.Collection(string(c)).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &NotFoundError{Collection: c, ID: id}
		}
		return fmt.Errorf("find %s %d: %w", c, id, err)
	}
	return nil
}

func (m *MongoStore) Insert(ctx context.Context, c Collection, rec any) (int, error) {
	if err := checkCollection(c); err != nil {
		return 0, err
	}
	raw, err := bson.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}

	id, err := m.nextID(ctx, c)
	if err != nil {
		return 0, err
	}
	delete(doc, "id")
	doc["_id"] = id
	if _, err := m.db.Collection(string(c)).InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("insert %s: %w", c, err)
	}
	return id, nil
}

func (m *MongoStore) nextID(ctx context.Context, c Collection) (int, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int `bson:"seq"`
	}
	err := m.db.Collection(countersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": string(c)}, bson.M{"$inc": bson.M{"seq": 1}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", c, err)
	}
	return counter.Seq, nil
}

func (m *MongoStore) Update(ctx context.Context, c Collection, id int, fields Fields) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	set := bson.M{}
	for k, v := range fields {
		if k == "id" || k == "_id" {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		// nothing to merge; still report a missing record
		return m.Get(ctx, c, id, &bson.M{})
	}
	res, err := m.db.Collection(string(c)).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s %d: %w", c, id, err)
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{Collection: c, ID: id}
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context, c Collection, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.db.Collection(string(c)).Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("list %s: %w", c, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", c, err)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, nil)
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}
