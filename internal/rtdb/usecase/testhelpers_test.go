package usecase

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/contextkeys"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"

	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory document store that records every call. Query
// parameters are recorded but not evaluated.
type fakeGateway struct {
	mu          sync.Mutex
	collections map[string]*jsonvalue.Map
	calls       []string
	params      []url.Values
	tags        []string
	failures    map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		collections: make(map[string]*jsonvalue.Map),
		failures:    make(map[string]error),
	}
}

// failOn makes every call whose method matches return err until cleared with nil.
func (g *fakeGateway) failOn(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, method)
		return
	}
	g.failures[method] = err
}

func (g *fakeGateway) record(ctx context.Context, method, target string, params url.Values) error {
	g.calls = append(g.calls, method+" "+target)
	op, _ := ctx.Value(contextkeys.OperationKey).(string)
	path, _ := ctx.Value(contextkeys.PathKey).(string)
	g.tags = append(g.tags, op+" "+path)
	g.params = append(g.params, params)
	return g.failures[method]
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Tags returns the operation and path each call's context carried.
func (g *fakeGateway) Tags() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.tags...)
}

func (g *fakeGateway) LastParams() url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.params) == 0 {
		return nil
	}
	return g.params[len(g.params)-1]
}

func (g *fakeGateway) resetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
	g.params = nil
	g.tags = nil
}

func (g *fakeGateway) docs(collection string) *jsonvalue.Map {
	m, ok := g.collections[collection]
	if !ok {
		m = jsonvalue.NewMap()
		g.collections[collection] = m
	}
	return m
}

func (g *fakeGateway) ListCollection(ctx context.Context, collection string, params url.Values) (jsonvalue.Value, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(ctx, "LIST", collection, params); err != nil {
		return jsonvalue.Value{}, err
	}
	var items []jsonvalue.Value
	g.docs(collection).Range(func(id string, doc jsonvalue.Value) bool {
		item := doc.Clone()
		if item.IsObject() {
			item.Map().Set(model.DefaultIDField, jsonvalue.StringValue(id))
		}
		items = append(items, item)
		return true
	})
	return jsonvalue.ArrayValue(items...), nil
}

func (g *fakeGateway) GetDocument(ctx context.Context, collection, id string, params url.Values) (jsonvalue.Value, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(ctx, "GET", collection+"/"+id, params); err != nil {
		return jsonvalue.Value{}, err
	}
	doc, ok := g.docs(collection).Get(id)
	if !ok {
		return jsonvalue.Value{}, errors.NewNotFoundError("document " + collection + "/" + id)
	}
	return doc.Clone(), nil
}

func (g *fakeGateway) PutDocument(ctx context.Context, collection, id string, doc jsonvalue.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(ctx, "PUT", collection+"/"+id, nil); err != nil {
		return err
	}
	g.docs(collection).Set(id, doc.Clone())
	return nil
}

func (g *fakeGateway) PatchDocument(ctx context.Context, collection, id string, partial jsonvalue.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(ctx, "PATCH", collection+"/"+id, nil); err != nil {
		return err
	}
	doc, ok := g.docs(collection).Get(id)
	if !ok || !doc.IsObject() {
		doc = jsonvalue.EmptyObject()
	} else {
		doc = doc.Clone()
	}
	partial.Map().Range(func(dotted string, v jsonvalue.Value) bool {
		fields := strings.Split(dotted, ".")
		current := doc.Map()
		for _, f := range fields[:len(fields)-1] {
			next, ok := current.Get(f)
			if !ok || !next.IsObject() {
				next = jsonvalue.EmptyObject()
				current.Set(f, next)
			}
			current = next.Map()
		}
		if v.IsNull() {
			current.Delete(fields[len(fields)-1])
		} else {
			current.Set(fields[len(fields)-1], v.Clone())
		}
		return true
	})
	g.docs(collection).Set(id, doc)
	return nil
}

func (g *fakeGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(ctx, "DELETE", collection+"/"+id, nil); err != nil {
		return err
	}
	if !g.docs(collection).Delete(id) {
		return errors.NewNotFoundError("document " + collection + "/" + id)
	}
	return nil
}

// seed stores a raw JSON document without recording a call.
func (g *fakeGateway) seed(t *testing.T, collection, id, raw string) {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(raw))
	require.NoError(t, err)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs(collection).Set(id, v)
}

// stored returns a document as plain Go data, or nil.
func (g *fakeGateway) stored(collection, id string) interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.docs(collection).Get(id)
	if !ok {
		return nil
	}
	return doc.Interface()
}

// manualNotifier triggers only when the test says so.
type manualNotifier struct {
	mu       sync.Mutex
	next     int
	watches  map[int]func()
	paths    map[int]model.Path
	watchErr error
}

func newManualNotifier() *manualNotifier {
	return &manualNotifier{watches: make(map[int]func()), paths: make(map[int]model.Path)}
}

func (n *manualNotifier) Watch(path model.Path, trigger func()) (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.watchErr != nil {
		return nil, n.watchErr
	}
	id := n.next
	n.next++
	n.watches[id] = trigger
	n.paths[id] = path
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.watches, id)
			delete(n.paths, id)
		})
	}, nil
}

func (n *manualNotifier) Close() error { return nil }

// Fire triggers every active watch.
func (n *manualNotifier) Fire() {
	n.mu.Lock()
	triggers := make([]func(), 0, len(n.watches))
	for _, t := range n.watches {
		triggers = append(triggers, t)
	}
	n.mu.Unlock()
	for _, t := range triggers {
		t()
	}
}

func (n *manualNotifier) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watches)
}

func newTestDatabase(t *testing.T) (*Database, *fakeGateway, *manualNotifier) {
	t.Helper()
	gw := newFakeGateway()
	notifier := newManualNotifier()
	db := NewDatabase(gw, notifier, Options{})
	t.Cleanup(db.Dispose)
	return db, gw, notifier
}

// recorder collects callback deliveries.
type recorder struct {
	mu    sync.Mutex
	snaps []*model.DataSnapshot
	errs  []error
}

func (r *recorder) callback(snap *model.DataSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *recorder) last() *model.DataSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Key())
	}
	return out
}
