package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admin-backend/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB wraps the client shared by every collection gateway.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *observability.Logger
}

// ConnectMongo opens a client against url and selects database.
func ConnectMongo(ctx context.Context, url, database string, logger *observability.Logger) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &MongoDB{client: client, database: client.Database(database), logger: logger}, nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Database returns the selected database handle.
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// EnsureIndexes creates the unique name index on the given collections.
func (m *MongoDB) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		_, err := m.database.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: uniqueField, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create %s index on %s: %w", uniqueField, name, err)
		}
		m.logger.Info(ctx, fmt.Sprintf("ensured unique %s index on %s", uniqueField, name))
	}
	return nil
}

// MongoGateway stores one entity type in one MongoDB collection.
type MongoGateway[T any, P Record[T]] struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoGateway[T any, P Record[T]](db *MongoDB, collection string) *MongoGateway[T, P] {
	return &MongoGateway[T, P]{
		coll: db.database.Collection(collection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (g *MongoGateway[T, P]) Insert(ctx context.Context, entity T) (T, error) {
	now := g.now()
	*P(&entity).document() = Document{CreatedAt: now, UpdatedAt: now}

	res, err := g.coll.InsertOne(ctx, entity)
	if err != nil {
		var zero T
		return zero, g.classify("insert into", err)
	}

	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		P(&entity).document().ID = id.Hex()
	case string:
		P(&entity).document().ID = id
	default:
		P(&entity).document().ID = fmt.Sprint(id)
	}
	return entity, nil
}

func (g *MongoGateway[T, P]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// Not a valid ObjectID, so no document can have it.
		return nil, nil
	}

	var out T
	err = g.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find in", g.coll.Name(), err)
	}
	return &out, nil
}

func (g *MongoGateway[T, P]) FindAll(ctx context.Context) ([]T, error) {
	cur, err := g.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, storeErr("list", g.coll.Name(), err)
	}

	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("list", g.coll.Name(), err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (g *MongoGateway[T, P]) UpdateByID(ctx context.Context, id string, entity T) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	fields, err := setFields(entity)
	if err != nil {
		return storeErr("update", g.coll.Name(), err)
	}
	fields["updated_at"] = g.now()

	_, err = g.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return g.classify("update", err)
	}
	return nil
}

func (g *MongoGateway[T, P]) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	if _, err := g.coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return storeErr("delete from", g.coll.Name(), err)
	}
	return nil
}

func (g *MongoGateway[T, P]) classify(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return &ConflictError{Collection: g.coll.Name(), Err: err}
	}
	return storeErr(op, g.coll.Name(), err)
}

// setFields renders the non-empty fields of entity as a $set document.
func setFields(entity any) (bson.M, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, err
	}
	fields := bson.M{}
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_id")
	delete(fields, "created_at")
	delete(fields, "updated_at")
	return fields, nil
}
