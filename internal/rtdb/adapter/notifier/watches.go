package notifier

import (
	"sync"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/errors"

	"github.com/tidwall/gjson"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.ErrNotifierClosed

type watch struct {
	path    model.Path
	trigger func()
}

// watchSet holds the watches of a push-based notifier and fans a change path
// out to every related one.
type watchSet struct {
	mu      sync.RWMutex
	watches map[int]*watch
	nextID  int
	closed  bool
}

func newWatchSet() *watchSet {
	return &watchSet{watches: make(map[int]*watch)}
}

func (s *watchSet) add(path model.Path, trigger func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	id := s.nextID
	s.nextID++
	s.watches[id] = &watch{path: path, trigger: trigger}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Holding the write lock waits out any notify in progress.
			s.mu.Lock()
			delete(s.watches, id)
			s.mu.Unlock()
		})
	}, nil
}

// notify triggers every watch whose path is an ancestor or descendant of path.
// It returns how many were triggered.
func (s *watchSet) notify(path model.Path) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, w := range s.watches {
		if w.path.Related(path) {
			w.trigger()
			n++
		}
	}
	return n
}

// notifyAll triggers every watch, used after a reconnect when changes may have
// been missed.
func (s *watchSet) notifyAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.watches {
		w.trigger()
	}
}

func (s *watchSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watches)
}

func (s *watchSet) close() {
	s.mu.Lock()
	s.closed = true
	s.watches = make(map[int]*watch)
	s.mu.Unlock()
}

// changePath reads the "path" of a change message.
func changePath(payload []byte) (model.Path, bool) {
	if !gjson.ValidBytes(payload) {
		return model.Path{}, false
	}
	p := gjson.GetBytes(payload, "path")
	if p.Type != gjson.String || p.Str == "" {
		return model.Path{}, false
	}
	return model.ParsePath(p.Str), true
}
