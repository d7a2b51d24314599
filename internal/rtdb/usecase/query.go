package usecase

import (
	"context"
	"net/url"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"

	"go.uber.org/zap"
)

// Query is a reference plus ordering, limit and range constraints. Every
// modifier returns a new Query and leaves the receiver untouched. A modifier
// given an unusable argument is ignored and the query keeps its prior state.
type Query struct {
	ref Reference
	c   model.QueryConstraints
}

// Ref returns the reference the query was built from.
func (q Query) Ref() Reference { return q.ref }

// Constraints returns the accumulated constraint state.
func (q Query) Constraints() model.QueryConstraints { return q.c }

// Params returns the REST parameters the query reads with.
func (q Query) Params() url.Values {
	return q.c.Params(q.ref.path, q.ref.db.idField)
}

func (q Query) OrderByChild(field string) Query {
	if field == "" {
		return q.ignore("orderByChild", "empty field")
	}
	q.c = q.c.WithOrder(model.Order{Kind: model.OrderByChild, Field: field})
	return q
}

func (q Query) OrderByKey() Query {
	q.c = q.c.WithOrder(model.Order{Kind: model.OrderByKey})
	return q
}

func (q Query) OrderByValue() Query {
	q.c = q.c.WithOrder(model.Order{Kind: model.OrderByValue})
	return q
}

func (q Query) LimitToFirst(n int) Query {
	if n <= 0 {
		return q.ignore("limitToFirst", "non-positive limit")
	}
	q.c = q.c.WithLimit(model.Limit{Kind: model.LimitFirst, Value: n})
	return q
}

func (q Query) LimitToLast(n int) Query {
	if n <= 0 {
		return q.ignore("limitToLast", "non-positive limit")
	}
	q.c = q.c.WithLimit(model.Limit{Kind: model.LimitLast, Value: n})
	return q
}

// StartAt adds a lower bound. The optional key names the field it applies to.
func (q Query) StartAt(value interface{}, key ...string) Query {
	b, ok := q.bound(value, key)
	if !ok {
		return q.ignore("startAt", "value is not JSON-serializable")
	}
	q.c = q.c.WithStartAt(b)
	return q
}

// EndAt adds an upper bound. The optional key names the field it applies to.
func (q Query) EndAt(value interface{}, key ...string) Query {
	b, ok := q.bound(value, key)
	if !ok {
		return q.ignore("endAt", "value is not JSON-serializable")
	}
	q.c = q.c.WithEndAt(b)
	return q
}

// EqualTo adds an equality filter. When combined with StartAt or EndAt it wins
// and the range bounds are dropped.
func (q Query) EqualTo(value interface{}, key ...string) Query {
	b, ok := q.bound(value, key)
	if !ok {
		return q.ignore("equalTo", "value is not JSON-serializable")
	}
	q.c = q.c.WithEqualTo(b)
	return q
}

func (q Query) bound(value interface{}, key []string) (model.Bound, bool) {
	v, err := jsonvalue.FromInterface(value)
	if err != nil {
		return model.Bound{}, false
	}
	b := model.Bound{Value: v}
	if len(key) > 0 {
		b.Key = key[0]
	}
	return b, true
}

// ignore drops a modifier call whose argument cannot form a constraint.
func (q Query) ignore(modifier, reason string) Query {
	q.ref.db.log.Warn("query constraint ignored",
		zap.String("path", q.ref.path.String()),
		zap.String("modifier", modifier),
		zap.String("reason", reason))
	return q
}

// checkSubPath rejects a constrained read below a document whose path has a
// field name containing ".", since the constraints travel with a dotted subPath.
func (q Query) checkSubPath() error {
	if q.c.IsEmpty() {
		return nil
	}
	return literalFields("filtered read", q.ref.path)
}

// Get reads the current value, surfacing transport failures.
func (q Query) Get(ctx context.Context) (*model.DataSnapshot, error) {
	if err := q.checkSubPath(); err != nil {
		return nil, err
	}
	ctx = operationContext(ctx, "get", q.ref.path)
	snap, err := q.ref.db.read(ctx, q.ref.path, q.c)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Once reads the current value. "value" returns the whole snapshot and
// "child_added" the first child; the other child events cannot be answered by a
// single read.
func (q Query) Once(ctx context.Context, eventType model.EventType) (*model.DataSnapshot, error) {
	if eventType == "" {
		eventType = model.EventValue
	}
	if err := q.checkSubPath(); err != nil {
		return nil, err
	}
	ctx = operationContext(ctx, "once", q.ref.path)

	switch eventType {
	case model.EventValue:
		return q.ref.db.readOnce(ctx, q.ref.path, q.c), nil
	case model.EventChildAdded:
		snap := q.ref.db.readOnce(ctx, q.ref.path, q.c)
		first := model.EmptySnapshot("")
		snap.ForEach(func(child *model.DataSnapshot) bool {
			first = child
			return true
		})
		return first, nil
	default:
		return nil, errors.NewValidationError("once does not support " + string(eventType)).
			WithDetail("eventType", string(eventType))
	}
}

// On subscribes cb to eventType on this query.
func (q Query) On(ctx context.Context, eventType model.EventType, cb Callback, onError ErrorCallback) (*Subscription, error) {
	et, err := model.ParseEventType(string(eventType))
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := q.checkSubPath(); err != nil {
		return nil, err
	}
	ctx = operationContext(ctx, "subscribe", q.ref.path)
	db := q.ref.db
	path, c := q.ref.path, q.c
	read := func(ctx context.Context) (*model.DataSnapshot, error) {
		return db.read(ctx, path, c)
	}
	return db.registry.Subscribe(ctx, q.key(et), path, read, cb, onError)
}

// Off removes listeners of this query. An empty eventType clears every listener
// at or below the reference's path, whatever its query.
func (q Query) Off(eventType model.EventType, subs ...*Subscription) {
	q.ref.db.registry.Off(q.ref.path, q.fingerprint(), eventType, subs...)
}

func (q Query) fingerprint() string {
	return q.c.Fingerprint(q.ref.path, q.ref.db.idField)
}

func (q Query) key(eventType model.EventType) listenerKey {
	return listenerKey{path: q.ref.path.String(), fingerprint: q.fingerprint(), eventType: eventType}
}
