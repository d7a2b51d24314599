package mongodb

import (
	"context"
	"fmt"
	"time"

	"rtdb-bridge/internal/docstore/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DefaultCollection holds every stored document.
const DefaultCollection = "documents"

// Store persists documents in a single MongoDB collection keyed by
// "collection/id". Listing order is insertion order. Data is kept as native
// BSON:
//
//	{_id: "users/42", collection: "users", key: "42", seq: <insert time>, data: {...}}
type Store struct {
	coll   *mongo.Collection
	logger logger.Logger
}

var _ repository.DocumentStore = (*Store)(nil)

// NewStore creates a store over db and ensures its listing index.
func NewStore(ctx context.Context, db *mongo.Database, collection string, log logger.Logger) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	s := &Store{
		coll:   db.Collection(collection),
		logger: logger.OrNop(log).WithComponent("mongodb_store"),
	}

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "collection", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetName("collection_seq"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listing index: %w", err)
	}
	return s, nil
}

func storageID(collection, id string) string {
	return collection + "/" + id
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Document, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"collection": collection}, findOpts)
	if err != nil {
		s.logger.Error("Failed to list collection", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	defer cur.Close(ctx)

	var out []repository.Document
	for cur.Next(ctx) {
		key, err := cur.Current.LookupErr("key")
		if err != nil {
			return nil, fmt.Errorf("stored document without key: %w", err)
		}
		data, err := fromRaw(cur.Current.Lookup("data"))
		if err != nil {
			return nil, err
		}
		out = append(out, repository.Document{ID: key.StringValue(), Data: data})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (jsonvalue.Value, error) {
	raw, err := s.coll.FindOne(ctx, bson.M{"_id": storageID(collection, id)}).DecodeBytes()
	if err == mongo.ErrNoDocuments {
		return jsonvalue.Value{}, errors.NewNotFoundError("document " + storageID(collection, id)).
			WithCause(errors.ErrDocumentNotFound)
	}
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return fromRaw(raw.Lookup("data"))
}

func (s *Store) Put(ctx context.Context, collection, id string, doc jsonvalue.Value) (bool, error) {
	filter := bson.M{"_id": storageID(collection, id)}
	update := bson.M{
		"$set": bson.M{
			"collection": collection,
			"key":        id,
			"data":       toBSON(doc),
		},
		"$setOnInsert": bson.M{"seq": time.Now().UnixNano()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		s.logger.Error("Failed to store document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": storageID(collection, id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFoundError("document " + storageID(collection, id)).
			WithCause(errors.ErrDocumentNotFound)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

// toBSON converts a JSON value to BSON, keeping object key order.
func toBSON(v jsonvalue.Value) interface{} {
	switch v.Kind() {
	case jsonvalue.Object:
		d := make(bson.D, 0, v.Map().Len())
		v.Map().Range(func(k string, child jsonvalue.Value) bool {
			d = append(d, bson.E{Key: k, Value: toBSON(child)})
			return true
		})
		return d
	case jsonvalue.Array:
		a := make(bson.A, 0, len(v.Items()))
		for _, item := range v.Items() {
			a = append(a, toBSON(item))
		}
		return a
	case jsonvalue.String:
		return v.Str()
	case jsonvalue.Number:
		return v.Number()
	case jsonvalue.Bool:
		return v.Bool()
	default:
		return nil
	}
}

// fromRaw converts a stored BSON value back to JSON.
func fromRaw(rv bson.RawValue) (jsonvalue.Value, error) {
	switch rv.Type {
	case bsontype.EmbeddedDocument:
		elems, err := rv.Document().Elements()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		m := jsonvalue.NewMap()
		for _, e := range elems {
			child, err := fromRaw(e.Value())
			if err != nil {
				return jsonvalue.Value{}, err
			}
			m.Set(e.Key(), child)
		}
		return jsonvalue.ObjectValue(m), nil
	case bsontype.Array:
		values, err := rv.Array().Values()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		items := make([]jsonvalue.Value, 0, len(values))
		for _, item := range values {
			child, err := fromRaw(item)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			items = append(items, child)
		}
		return jsonvalue.ArrayValue(items...), nil
	case bsontype.String:
		return jsonvalue.StringValue(rv.StringValue()), nil
	case bsontype.Double:
		return jsonvalue.NumberValue(rv.Double()), nil
	case bsontype.Int32:
		return jsonvalue.NumberValue(float64(rv.Int32())), nil
	case bsontype.Int64:
		return jsonvalue.NumberValue(float64(rv.Int64())), nil
	case bsontype.Boolean:
		return jsonvalue.BoolValue(rv.Boolean()), nil
	case bsontype.Null, bsontype.Undefined:
		return jsonvalue.NullValue(), nil
	default:
		return jsonvalue.Value{}, fmt.Errorf("unsupported BSON type %s", rv.Type)
	}
}
