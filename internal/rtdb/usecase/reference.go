package usecase

import (
	"context"
	"fmt"
	"sort"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"

	"go.uber.org/zap"
)

// Reference addresses one path. It holds no data and owns no resources; every
// navigation method is pure.
type Reference struct {
	db   *Database
	path model.Path
}

// Path returns the normalized path.
func (r Reference) Path() model.Path { return r.path }

func (r Reference) String() string { return r.path.String() }

// Key is the last path segment, or "" at the root.
func (r Reference) Key() string { return r.path.Key() }

// Parent returns nil at the root.
func (r Reference) Parent() *Reference {
	parent, ok := r.path.Parent()
	if !ok {
		return nil
	}
	return &Reference{db: r.db, path: parent}
}

func (r Reference) Root() Reference {
	return Reference{db: r.db, path: model.ParsePath("")}
}

// Child returns the reference for path/relative. relative may span segments.
func (r Reference) Child(relative string) Reference {
	return Reference{db: r.db, path: r.path.Child(relative)}
}

// Push returns a child under a freshly generated key. Keys carry a millisecond
// time component and are unique without coordination, but ordering across
// clients with skewed clocks is approximate. When a value is given it is also
// Set at the new child.
func (r Reference) Push(ctx context.Context, value ...interface{}) (Reference, error) {
	child := r.Child(r.db.newKey())
	switch len(value) {
	case 0:
		return child, nil
	case 1:
		return child, child.Set(ctx, value[0])
	default:
		return child, errors.NewValidationError("push accepts at most one value")
	}
}

// Set replaces the value at the path. A nil value removes it. Depth 1 writes
// each entry of an object as its own document; depth 2 replaces the document;
// deeper paths go through read-modify-write of the enclosing document.
func (r Reference) Set(ctx context.Context, value interface{}) (err error) {
	defer func() { r.db.observeWrite("set", err) }()
	ctx = operationContext(ctx, "set", r.path)

	v, err := toValue(value)
	if err != nil {
		return err
	}
	return r.setValue(ctx, v)
}

func (r Reference) setValue(ctx context.Context, v jsonvalue.Value) error {
	switch r.path.Depth() {
	case model.DepthRoot:
		return invalidPath("set")

	case model.DepthCollection:
		if !v.Exists() {
			return r.removeCollection(ctx)
		}
		entries := v.Map()
		if entries == nil {
			return errors.NewValidationError("a collection can only be set to an object of documents").
				WithCause(errors.ErrInvalidDocument).
				WithDetail("path", r.path.String())
		}
		var err error
		entries.Range(func(id string, doc jsonvalue.Value) bool {
			err = r.Child(id).setValue(ctx, doc)
			return err == nil
		})
		return err

	case model.DepthDocument:
		if !v.Exists() {
			return r.removeDocument(ctx)
		}
		id, _ := r.path.DocumentID()
		if err := r.db.gateway.PutDocument(ctx, r.path.Collection(), id, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", r.path, err)
		}
		return nil

	default:
		if err := literalFields("set", r.path); err != nil {
			return err
		}
		if !v.Exists() {
			return r.db.mutator.Delete(ctx, r.path)
		}
		return r.db.mutator.Assign(ctx, r.path, v)
	}
}

// Update writes several children at once. Keys may contain slashes to address
// deeper descendants. Targets at document depth are replaced; deeper targets are
// grouped into one dotted PATCH per document, sent without reading first. A nil
// value deletes its target. Updates spanning documents are not atomic.
func (r Reference) Update(ctx context.Context, values map[string]interface{}) (err error) {
	defer func() { r.db.observeWrite("update", err) }()
	ctx = operationContext(ctx, "update", r.path)

	if r.path.IsRoot() {
		return invalidPath("update")
	}
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type docWrite struct {
		ref   Reference
		value jsonvalue.Value
	}
	var writes []docWrite
	patches := make(map[string]*jsonvalue.Map)
	var patchOrder []model.Path

	for _, k := range keys {
		target := r.path.Child(k)
		if target.Depth() == r.path.Depth() {
			return errors.NewValidationError("update keys must name a child path").
				WithCause(errors.ErrInvalidPath).
				WithDetail("key", k)
		}
		v, err := toValue(values[k])
		if err != nil {
			return err
		}

		if target.Depth() == model.DepthDocument {
			writes = append(writes, docWrite{ref: Reference{db: r.db, path: target}, value: v})
			continue
		}

		if err := literalFields("update", target); err != nil {
			return err
		}
		docPath := target.DocumentPath()
		fields, ok := patches[docPath.String()]
		if !ok {
			fields = jsonvalue.NewMap()
			patches[docPath.String()] = fields
			patchOrder = append(patchOrder, docPath)
		}
		if !v.Exists() {
			v = jsonvalue.NullValue()
		}
		fields.Set(target.DottedNested(), v)
	}

	for _, w := range writes {
		if err := w.ref.setValue(ctx, w.value); err != nil {
			return err
		}
	}
	for _, docPath := range patchOrder {
		if err := r.db.mutator.Patch(ctx, docPath, patches[docPath.String()]); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the value at the path. Removing something that does not exist
// is a no-op.
func (r Reference) Remove(ctx context.Context) (err error) {
	defer func() { r.db.observeWrite("remove", err) }()
	ctx = operationContext(ctx, "remove", r.path)

	switch r.path.Depth() {
	case model.DepthRoot:
		return invalidPath("remove")
	case model.DepthCollection:
		return r.removeCollection(ctx)
	case model.DepthDocument:
		return r.removeDocument(ctx)
	default:
		if err := literalFields("remove", r.path); err != nil {
			return err
		}
		return r.db.mutator.Delete(ctx, r.path)
	}
}

func (r Reference) removeDocument(ctx context.Context) error {
	id, _ := r.path.DocumentID()
	err := r.db.gateway.DeleteDocument(ctx, r.path.Collection(), id)
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to remove %s: %w", r.path, err)
	}
	return nil
}

// removeCollection lists the collection and deletes each document in turn.
func (r Reference) removeCollection(ctx context.Context) error {
	ids, err := r.db.listIDs(ctx, r.path.Collection())
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", r.path, err)
	}
	for _, id := range ids {
		if err := r.Child(id).removeDocument(ctx); err != nil {
			return err
		}
	}
	r.db.log.WithContext(ctx).Debug("collection removed", zap.Int("documents", len(ids)))
	return nil
}

// Get reads the current value, surfacing transport failures.
func (r Reference) Get(ctx context.Context) (*model.DataSnapshot, error) {
	return r.Query().Get(ctx)
}

// Once reads the current value. Not-found and transport failures both yield a
// non-existent snapshot; only an unusable event type is an error.
func (r Reference) Once(ctx context.Context, eventType model.EventType) (*model.DataSnapshot, error) {
	return r.Query().Once(ctx, eventType)
}

// On subscribes cb to eventType. cb fires immediately with the current value and
// again on every change signal from the database's notifier.
func (r Reference) On(ctx context.Context, eventType model.EventType, cb Callback, onError ErrorCallback) (*Subscription, error) {
	return r.Query().On(ctx, eventType, cb, onError)
}

// Off removes listeners on this reference. See ListenerRegistry.Off.
func (r Reference) Off(eventType model.EventType, subs ...*Subscription) {
	r.Query().Off(eventType, subs...)
}

// Query returns an unconstrained query on this reference.
func (r Reference) Query() Query {
	return Query{ref: r}
}

func (r Reference) OrderByChild(field string) Query { return r.Query().OrderByChild(field) }

func (r Reference) OrderByKey() Query { return r.Query().OrderByKey() }

func (r Reference) OrderByValue() Query { return r.Query().OrderByValue() }

func (r Reference) LimitToFirst(n int) Query { return r.Query().LimitToFirst(n) }

func (r Reference) LimitToLast(n int) Query { return r.Query().LimitToLast(n) }

func (r Reference) StartAt(value interface{}, key ...string) Query {
	return r.Query().StartAt(value, key...)
}

func (r Reference) EndAt(value interface{}, key ...string) Query {
	return r.Query().EndAt(value, key...)
}

func (r Reference) EqualTo(value interface{}, key ...string) Query {
	return r.Query().EqualTo(value, key...)
}

func toValue(value interface{}) (jsonvalue.Value, error) {
	v, err := jsonvalue.FromInterface(value)
	if err != nil {
		return jsonvalue.Value{}, errors.NewValidationError("value is not JSON-serializable").WithCause(err)
	}
	return v, nil
}

// literalFields rejects nested field names containing "." for operations that
// address fields by dotted name.
func literalFields(op string, p model.Path) error {
	if !p.HasDottedField() {
		return nil
	}
	return errors.NewValidationError(op + " cannot address a field name containing \".\"").
		WithCause(errors.ErrInvalidPath).
		WithDetail("operation", op).
		WithDetail("path", p.String())
}

func invalidPath(op string) error {
	return errors.NewValidationError(op + " requires a path with a collection").
		WithCause(errors.ErrInvalidPath).
		WithDetail("operation", op)
}
