package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/logger"
	"rtdb-bridge/internal/shared/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback receives a snapshot. Child events receive the child's snapshot.
type Callback func(snap *model.DataSnapshot)

// ErrorCallback receives read failures of a live subscription.
type ErrorCallback func(err error)

type reader func(ctx context.Context) (*model.DataSnapshot, error)

// listenerKey identifies one shared watch: the normalized path, the query
// fingerprint and the event type.
type listenerKey struct {
	path        string
	fingerprint string
	eventType   model.EventType
}

func (k listenerKey) String() string {
	s := k.path + "#" + string(k.eventType)
	if k.fingerprint != "" {
		s += "?" + k.fingerprint
	}
	return s
}

// listener is the active state of a key: its entries and the watch driving it.
type listener struct {
	key       listenerKey
	path      model.Path
	read      reader
	subs      []*Subscription
	kick      chan struct{}
	cancel    context.CancelFunc
	stopWatch func()
}

func (l *listener) trigger() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// Subscription is the handle returned by On.
type Subscription struct {
	ID string

	key      listenerKey
	callback Callback
	onError  ErrorCallback
	registry *ListenerRegistry
	listener *listener
	active   atomic.Bool
	once     sync.Once

	// deliverMu is held for the whole of a delivery. inCallback is set while
	// user code runs so a re-entrant Unsubscribe does not wait on itself.
	deliverMu  sync.Mutex
	inCallback atomic.Bool

	// last is the previous snapshot seen, for child event diffing. Only the
	// delivering goroutine touches it.
	last *model.DataSnapshot
}

// EventType returns the event the subscription listens for.
func (s *Subscription) EventType() model.EventType { return s.key.eventType }

// Path returns the normalized path being watched.
func (s *Subscription) Path() string { return s.key.path }

// Active is false once the subscription has been removed.
func (s *Subscription) Active() bool { return s.active.Load() }

// Unsubscribe removes the subscription. It is idempotent. A callback already
// running may complete; once Unsubscribe returns no further callback starts.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.active.Store(false)
		s.registry.detach(s)
	})
	s.settle()
}

// settle waits for a delivery that passed its active check but has not reached
// the callback yet. Called from inside a callback it returns at once.
func (s *Subscription) settle() {
	if s.inCallback.Load() {
		return
	}
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
}

// invoke runs fn as user code if s is still active. Callers hold deliverMu.
func (s *Subscription) invoke(fn func()) bool {
	if !s.active.Load() {
		return false
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
	return true
}

// ListenerRegistry multiplexes subscriptions onto one watch per key. Keys move
// absent -> active on the first subscription and back to absent when the last
// one is removed. All map mutations happen under mu.
type ListenerRegistry struct {
	mu        sync.Mutex
	listeners map[listenerKey]*listener
	notifier  repository.ChangeNotifier
	log       logger.Logger
	metrics   *metrics.Metrics
	disposed  bool
}

// NewListenerRegistry creates an empty registry that watches through notifier.
func NewListenerRegistry(notifier repository.ChangeNotifier, log logger.Logger, m *metrics.Metrics) *ListenerRegistry {
	return &ListenerRegistry{
		listeners: make(map[listenerKey]*listener),
		notifier:  notifier,
		log:       logger.OrNop(log).WithComponent("listener_registry"),
		metrics:   m,
	}
}

// Subscribe reads once, delivers the result to cb, then attaches the entry to
// the key's watch, activating it if needed.
func (r *ListenerRegistry) Subscribe(ctx context.Context, key listenerKey, path model.Path, read reader, cb Callback, onError ErrorCallback) (*Subscription, error) {
	if cb == nil {
		return nil, errors.NewValidationError("callback is required")
	}
	if r.isDisposed() {
		return nil, errors.ErrDisposed
	}

	sub := &Subscription{
		ID:       uuid.NewString(),
		key:      key,
		callback: cb,
		onError:  onError,
		registry: r,
	}
	sub.active.Store(true)

	snap, err := read(ctx)
	r.observe(ctx, key, snap, err)
	r.deliver(sub, snap, err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		sub.active.Store(false)
		return nil, errors.ErrDisposed
	}
	if !sub.active.Load() {
		// Unsubscribed from inside its first callback.
		return sub, nil
	}

	l, ok := r.listeners[key]
	if !ok {
		l, err = r.activate(key, path, read)
		if err != nil {
			sub.active.Store(false)
			return nil, err
		}
	}
	l.subs = append(l.subs, sub)
	sub.listener = l
	r.metrics.SubscriberAdded()

	return sub, nil
}

// activate starts the watch for key. Callers hold mu.
func (r *ListenerRegistry) activate(key listenerKey, path model.Path, read reader) (*listener, error) {
	ctx, cancel := context.WithCancel(operationContext(context.Background(), "watch", path))
	l := &listener{
		key:    key,
		path:   path,
		read:   read,
		kick:   make(chan struct{}, 1),
		cancel: cancel,
	}

	stop, err := r.notifier.Watch(path, l.trigger)
	if err != nil {
		cancel()
		r.log.Error("failed to start watch", zap.String("key", key.String()), zap.Error(err))
		return nil, errors.WrapError(err, "failed to start watch")
	}
	l.stopWatch = stop
	r.listeners[key] = l
	r.metrics.ListenerActivated()

	go r.run(ctx, l)

	r.log.Debug("listener activated", zap.String("key", key.String()))
	return l, nil
}

// deactivate stops l and removes it from the map. Callers hold mu.
func (r *ListenerRegistry) deactivate(l *listener) {
	if r.listeners[l.key] == l {
		delete(r.listeners, l.key)
	}
	l.cancel()
	l.stopWatch()
	r.metrics.ListenerDeactivated()
	r.log.Debug("listener deactivated", zap.String("key", l.key.String()))
}

// clear removes every entry of l, deactivates it and returns the removed
// entries. Callers hold mu.
func (r *ListenerRegistry) clear(l *listener) []*Subscription {
	subs := l.subs
	for _, s := range subs {
		s.active.Store(false)
		r.metrics.SubscriberRemoved()
	}
	l.subs = nil
	r.deactivate(l)
	return subs
}

// run re-reads on every trigger until the listener is deactivated. Being the
// only delivering goroutine of l, it serializes deliveries for the key.
func (r *ListenerRegistry) run(ctx context.Context, l *listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.kick:
		}

		snap, err := l.read(ctx)
		if ctx.Err() != nil {
			return
		}
		r.observe(ctx, l.key, snap, err)

		r.mu.Lock()
		subs := append([]*Subscription(nil), l.subs...)
		r.mu.Unlock()

		for _, s := range subs {
			r.deliver(s, snap, err)
		}
	}
}

func (r *ListenerRegistry) observe(ctx context.Context, key listenerKey, snap *model.DataSnapshot, err error) {
	if err != nil {
		r.metrics.ObserveRead("watch", metrics.OutcomeError)
		r.log.WithContext(ctx).Warn("listener read failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	r.metrics.ObserveRead("watch", outcomeOf(snap))
}

// deliver hands one read result to s. The active flag is checked right before
// every callback, under the delivery lock Unsubscribe waits on.
func (r *ListenerRegistry) deliver(s *Subscription, snap *model.DataSnapshot, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if err != nil {
		if s.onError != nil {
			s.invoke(func() { s.onError(err) })
		}
		return
	}

	if !s.key.eventType.IsChildEvent() {
		s.invoke(func() { s.callback(snap) })
		return
	}

	changes := model.DiffChildren(s.last, snap)
	s.last = snap
	for _, child := range changes.For(s.key.eventType) {
		child := child
		if !s.invoke(func() { s.callback(child) }) {
			return
		}
	}
}

// detach removes s from its listener, deactivating the key when it was the last
// entry. A stale listener (already replaced or cleared) is left alone.
func (r *ListenerRegistry) detach(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := s.listener
	if l == nil || r.listeners[l.key] != l {
		return
	}
	for i, other := range l.subs {
		if other == s {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			r.metrics.SubscriberRemoved()
			break
		}
	}
	if len(l.subs) == 0 {
		r.deactivate(l)
	}
}

// Off removes listeners. With an empty eventType every key at or below path is
// cleared regardless of query. With subs, only those entries of the key are
// removed; otherwise the whole key is cleared.
func (r *ListenerRegistry) Off(path model.Path, fingerprint string, eventType model.EventType, subs ...*Subscription) {
	if eventType == "" {
		r.mu.Lock()
		var cleared []*Subscription
		for _, l := range r.listeners {
			if l.path.HasPrefix(path) {
				cleared = append(cleared, r.clear(l)...)
			}
		}
		r.mu.Unlock()
		settleAll(cleared)
		return
	}

	key := listenerKey{path: path.String(), fingerprint: fingerprint, eventType: eventType}
	if len(subs) == 0 {
		r.mu.Lock()
		var cleared []*Subscription
		if l, ok := r.listeners[key]; ok {
			cleared = r.clear(l)
		}
		r.mu.Unlock()
		settleAll(cleared)
		return
	}

	for _, s := range subs {
		if s != nil && s.key == key {
			s.Unsubscribe()
		}
	}
}

// Dispose clears every listener. Later subscriptions fail with ErrDisposed.
func (r *ListenerRegistry) Dispose() {
	r.mu.Lock()
	r.disposed = true
	var cleared []*Subscription
	for _, l := range r.listeners {
		cleared = append(cleared, r.clear(l)...)
	}
	r.mu.Unlock()
	settleAll(cleared)
}

// settleAll runs outside mu so a callback blocked on the registry can finish.
func settleAll(subs []*Subscription) {
	for _, s := range subs {
		s.settle()
	}
}

func (r *ListenerRegistry) isDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// ActiveCount is the number of keys with a running watch.
func (r *ListenerRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Keys lists the active keys in sorted order.
func (r *ListenerRegistry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.listeners))
	for k := range r.listeners {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}
