package usecase

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_ModifiersReturnNewQueries(t *testing.T) {
	db, _, _ := newTestDatabase(t)
	base := db.Ref("users").OrderByChild("age")

	young := base.EndAt(17)
	adults := base.StartAt(18).EndAt(65)

	assert.Empty(t, base.Params().Get("filter[0][op]"))
	assert.Equal(t, "<=", young.Params().Get("filter[0][op]"))
	assert.Equal(t, "17", young.Params().Get("filter[0][value]"))
	assert.Equal(t, ">=", adults.Params().Get("filter[0][op]"))
	assert.Equal(t, "65", adults.Params().Get("filter[1][value]"))
	assert.Equal(t, "users", adults.Ref().String())
}

func TestQuery_AgeRangeTranslation(t *testing.T) {
	db, _, _ := newTestDatabase(t)
	params := db.Ref("users").OrderByChild("age").StartAt(18).EndAt(65).Params()

	assert.Equal(t, map[string][]string{
		"orderBy[0][field]":     {"age"},
		"orderBy[0][direction]": {"asc"},
		"filter[0][field]":      {"age"},
		"filter[0][op]":         {">="},
		"filter[0][value]":      {"18"},
		"filter[1][field]":      {"age"},
		"filter[1][op]":         {"<="},
		"filter[1][value]":      {"65"},
	}, map[string][]string(params))
}

func TestQuery_ReadsSendParams(t *testing.T) {
	ctx := context.Background()
	db, gw, _ := newTestDatabase(t)
	gw.seed(t, "users", "42", `{"orders":{"a":{"total":5}}}`)

	_, err := db.Ref("users").LimitToLast(2).Once(ctx, model.EventValue)
	require.NoError(t, err)
	assert.Equal(t, "2", gw.LastParams().Get("limit"))
	assert.Equal(t, "true", gw.LastParams().Get("reverse"))

	snap, err := db.Ref("users/42/orders").OrderByChild("total").EqualTo(5).Once(ctx, model.EventValue)
	require.NoError(t, err)
	assert.Equal(t, "orders", gw.LastParams().Get("subPath"))
	assert.Equal(t, "==", gw.LastParams().Get("filter[0][op]"))
	assert.Equal(t, []string{"a"}, snap.Keys())
}

func TestQuery_EqualToOverridesRange(t *testing.T) {
	db, _, _ := newTestDatabase(t)
	params := db.Ref("users").OrderByKey().StartAt("a").EqualTo("m").EndAt("z").Params()

	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"filter[0][field]", "filter[0][op]", "filter[0][value]",
		"orderBy[0][direction]", "orderBy[0][field]",
	}, keys)
	assert.Equal(t, "id", params.Get("filter[0][field]"))
	assert.Equal(t, "m", params.Get("filter[0][value]"))
}

func TestQuery_ExplicitKeyAndCustomIDField(t *testing.T) {
	db := NewDatabase(newFakeGateway(), newManualNotifier(), Options{IDField: "_key"})
	defer db.Dispose()

	params := db.Ref("users").OrderByKey().StartAt(3).Params()
	assert.Equal(t, "_key", params.Get("orderBy[0][field]"))
	assert.Equal(t, "_key", params.Get("filter[0][field]"))

	params = db.Ref("users").OrderByChild("age").EqualTo("x", "name").Params()
	assert.Equal(t, "name", params.Get("filter[0][field]"))

	params = db.Ref("users").EqualTo(true).Params()
	assert.Equal(t, "_key", params.Get("filter[0][field]"))
	assert.Equal(t, "true", params.Get("filter[0][value]"))
	assert.Equal(t, "_key", db.IDField())
}

func TestQuery_UnusableModifiersAreIgnored(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	gw := newFakeGateway()
	db := NewDatabase(gw, newManualNotifier(), Options{Logger: logger.NewLoggerWithWriter("warn", "json", &buf)})
	defer db.Dispose()
	gw.seed(t, "users", "42", `{"name":"Ann"}`)

	base := db.Ref("users").OrderByChild("age").LimitToFirst(2)
	for name, q := range map[string]Query{
		"empty orderByChild field": base.OrderByChild(""),
		"zero limitToFirst":        base.LimitToFirst(0),
		"negative limitToFirst":    base.LimitToFirst(-1),
		"zero limitToLast":         base.LimitToLast(0),
		"unserializable startAt":   base.StartAt(make(chan int)),
		"unserializable endAt":     base.EndAt(func() {}),
		"unserializable equalTo":   base.EqualTo(make(chan int)),
	} {
		assert.Equal(t, base.Params(), q.Params(), name)

		snap, err := q.Once(ctx, model.EventValue)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"42"}, snap.Keys(), name)

		_, err = q.Get(ctx)
		require.NoError(t, err, name)
		assert.Equal(t, "2", gw.LastParams().Get("limit"), name)
	}

	unconstrained := db.Ref("users").LimitToLast(0)
	assert.Empty(t, unconstrained.Params())
	assert.Contains(t, buf.String(), "query constraint ignored")
	assert.Contains(t, buf.String(), `"modifier":"limitToLast"`)
}

func TestNewPushKey_Ordered(t *testing.T) {
	prev := NewPushKey()
	for i := 0; i < 100; i++ {
		next := NewPushKey()
		assert.Less(t, prev, next)
		assert.Len(t, next, 26)
		prev = next
	}
}
