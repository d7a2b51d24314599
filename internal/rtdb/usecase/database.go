package usecase

import (
	"context"
	"net/url"
	"strconv"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/contextkeys"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"
	"rtdb-bridge/internal/shared/metrics"

	"go.uber.org/zap"
)

// Options tune a Database. The zero value is usable.
type Options struct {
	// IDField is the document identifier field used by orderByKey, default filters
	// and collection listings.
	IDField string
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// NewKey overrides push key generation.
	NewKey KeyGenerator
}

// Database is one adapter instance. It owns the gateway, the listener registry
// and the change notifier driving it.
type Database struct {
	gateway  repository.RestGateway
	registry *ListenerRegistry
	mutator  *nestedMutator
	idField  string
	newKey   KeyGenerator
	log      logger.Logger
	metrics  *metrics.Metrics
}

// NewDatabase wires a gateway and a change notifier into an adapter instance.
func NewDatabase(gateway repository.RestGateway, notifier repository.ChangeNotifier, opts Options) *Database {
	log := logger.OrNop(opts.Logger).WithComponent("rtdb")
	idField := opts.IDField
	if idField == "" {
		idField = model.DefaultIDField
	}
	newKey := opts.NewKey
	if newKey == nil {
		newKey = NewPushKey
	}

	return &Database{
		gateway:  gateway,
		registry: NewListenerRegistry(notifier, log, opts.Metrics),
		mutator:  &nestedMutator{gateway: gateway, log: log},
		idField:  idField,
		newKey:   newKey,
		log:      log,
		metrics:  opts.Metrics,
	}
}

// Ref returns a reference to path. Construction never fails; invalid paths are
// reported by the operations that need a collection.
func (db *Database) Ref(path string) Reference {
	return Reference{db: db, path: model.ParsePath(path)}
}

// Registry exposes the listener registry, mainly for inspection.
func (db *Database) Registry() *ListenerRegistry {
	return db.registry
}

// IDField returns the configured identifier field.
func (db *Database) IDField() string {
	return db.idField
}

// Dispose stops every listener. Further On calls fail with ErrDisposed.
func (db *Database) Dispose() {
	db.registry.Dispose()
}

// read performs one strict read: not-found yields a non-existent snapshot,
// transport failures are returned.
func (db *Database) read(ctx context.Context, path model.Path, c model.QueryConstraints) (*model.DataSnapshot, error) {
	params := c.Params(path, db.idField)

	switch path.Depth() {
	case model.DepthRoot:
		// The REST contract has no listing of collections.
		return model.EmptySnapshot(""), nil

	case model.DepthCollection:
		list, err := db.gateway.ListCollection(ctx, path.Collection(), params)
		if err != nil {
			if errors.IsNotFound(err) {
				return model.EmptySnapshot(path.Key()), nil
			}
			return nil, err
		}
		return model.MakeSnapshot(path.Key(), db.keyByID(list)), nil

	default:
		id, _ := path.DocumentID()
		doc, err := db.gateway.GetDocument(ctx, path.Collection(), id, params)
		if err != nil {
			if errors.IsNotFound(err) {
				return model.EmptySnapshot(path.Key()), nil
			}
			return nil, err
		}
		if path.Depth() == model.DepthDocument {
			return model.MakeSnapshot(path.Key(), doc), nil
		}
		return model.MakeSnapshot(path.Key(), walk(doc, path.NestedFields())), nil
	}
}

// readOnce is the lenient read behind Once: failures are logged and mapped to a
// non-existent snapshot.
func (db *Database) readOnce(ctx context.Context, path model.Path, c model.QueryConstraints) *model.DataSnapshot {
	snap, err := db.read(ctx, path, c)
	if err != nil {
		db.metrics.ObserveRead("once", metrics.OutcomeError)
		db.log.WithContext(ctx).Warn("read failed, returning empty snapshot", zap.Error(err))
		return model.EmptySnapshot(path.Key())
	}
	db.metrics.ObserveRead("once", outcomeOf(snap))
	return snap
}

// keyByID turns a collection listing into an object keyed by document id, in
// server order. An empty listing means the collection does not exist.
func (db *Database) keyByID(list jsonvalue.Value) jsonvalue.Value {
	if list.IsObject() {
		return list
	}
	items := list.Items()
	if len(items) == 0 {
		return jsonvalue.UndefinedValue()
	}
	out := jsonvalue.NewMap()
	for i, item := range items {
		key := strconv.Itoa(i)
		if id, ok := item.Get(db.idField); ok && id.Exists() {
			key = model.FormatFilterValue(id)
		}
		out.Set(key, item)
	}
	return jsonvalue.ObjectValue(out)
}

// walk descends through object fields. Anything missing yields undefined.
func walk(v jsonvalue.Value, fields []string) jsonvalue.Value {
	for _, f := range fields {
		next, ok := v.Get(f)
		if !ok {
			return jsonvalue.UndefinedValue()
		}
		v = next
	}
	return v
}

func outcomeOf(snap *model.DataSnapshot) string {
	if snap.Exists() {
		return metrics.OutcomeOK
	}
	return metrics.OutcomeNotFound
}

// operationContext tags ctx with the operation and path it serves. Log lines
// written through WithContext and gateway calls made with the result carry both.
func operationContext(ctx context.Context, op string, path model.Path) context.Context {
	ctx = context.WithValue(ctx, contextkeys.OperationKey, op)
	return context.WithValue(ctx, contextkeys.PathKey, path.String())
}

func (db *Database) observeWrite(op string, err error) {
	if err != nil {
		db.metrics.ObserveWrite(op, metrics.OutcomeError)
		return
	}
	db.metrics.ObserveWrite(op, metrics.OutcomeOK)
}

// listIDs lists the identifiers of every document in a collection.
func (db *Database) listIDs(ctx context.Context, collection string) ([]string, error) {
	list, err := db.gateway.ListCollection(ctx, collection, url.Values{})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, item := range list.Items() {
		if id, ok := item.Get(db.idField); ok && id.Exists() {
			ids = append(ids, model.FormatFilterValue(id))
		}
	}
	return ids, nil
}
