package mongodb

import (
	"context"
	"testing"
	"time"

	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestBSONConversion_RoundTripKeepsOrder(t *testing.T) {
	in, err := jsonvalue.Parse([]byte(`{"z":1,"a":{"y":[true,null,"s",2.5],"b":{}},"m":[]}`))
	require.NoError(t, err)

	raw, err := bson.Marshal(bson.D{{Key: "data", Value: toBSON(in)}})
	require.NoError(t, err)

	out, err := fromRaw(bson.Raw(raw).Lookup("data"))
	require.NoError(t, err)
	assert.True(t, jsonvalue.Equal(in, out))
	assert.Equal(t, []string{"z", "a", "m"}, out.Map().Keys())
}

func TestBSONConversion_Scalars(t *testing.T) {
	for _, v := range []jsonvalue.Value{
		jsonvalue.StringValue("x"),
		jsonvalue.NumberValue(42),
		jsonvalue.BoolValue(false),
		jsonvalue.NullValue(),
	} {
		raw, err := bson.Marshal(bson.D{{Key: "data", Value: toBSON(v)}})
		require.NoError(t, err)
		out, err := fromRaw(bson.Raw(raw).Lookup("data"))
		require.NoError(t, err)
		assert.True(t, jsonvalue.Equal(v, out), v.Kind().String())
	}
}

func TestBSONConversion_IntegersBecomeNumbers(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "data", Value: bson.D{{Key: "i", Value: int32(7)}, {Key: "l", Value: int64(9)}}}})
	require.NoError(t, err)
	out, err := fromRaw(bson.Raw(raw).Lookup("data"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"i": float64(7), "l": float64(9)}, out.Interface())
}

func TestBSONConversion_RejectsForeignTypes(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "data", Value: time.Unix(0, 0)}})
	require.NoError(t, err)
	_, err = fromRaw(bson.Raw(raw).Lookup("data"))
	assert.Error(t, err)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Skip("MongoDB not available for testing:", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skip("MongoDB not available for testing:", err)
	}

	db := client.Database("rtdb_bridge_test")
	store, err := NewStore(ctx, db, "documents_"+time.Now().Format("150405.000000"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		store.coll.Drop(cleanupCtx)
		store.Close(cleanupCtx)
	})
	return store
}

func TestStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := jsonvalue.MustFromInterface(map[string]interface{}{"name": "Ann", "tags": []interface{}{"a"}})
	created, err := store.Put(ctx, "users", "u1", doc)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Put(ctx, "users", "u1", doc)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.True(t, jsonvalue.Equal(doc, got))

	require.NoError(t, store.Delete(ctx, "users", "u1"))
	assert.True(t, errors.IsNotFound(store.Delete(ctx, "users", "u1")))
	_, err = store.Get(ctx, "users", "u1")
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_ListInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := store.Put(ctx, "letters", id, jsonvalue.StringValue(id))
		require.NoError(t, err)
	}
	_, err := store.Put(ctx, "other", "x", jsonvalue.NullValue())
	require.NoError(t, err)

	docs, err := store.List(ctx, "letters")
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		assert.Equal(t, d.ID, d.Data.Str())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	docs, err = store.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
