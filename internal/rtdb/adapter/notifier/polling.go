package notifier

import (
	"sync"
	"time"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
)

// DefaultPollInterval is how often a polled listener re-reads.
const DefaultPollInterval = 5 * time.Second

// Polling triggers every watch on a fixed interval, one ticker per watch.
type Polling struct {
	interval time.Duration

	mu     sync.Mutex
	stops  map[int]func()
	nextID int
	closed bool
}

var _ repository.ChangeNotifier = (*Polling)(nil)

func NewPolling(interval time.Duration) *Polling {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Polling{interval: interval, stops: make(map[int]func())}
}

// Interval returns the polling period.
func (p *Polling) Interval() time.Duration { return p.interval }

func (p *Polling) Watch(_ model.Path, trigger func()) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	id := p.nextID
	p.nextID++

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
					trigger()
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			<-exited
			p.mu.Lock()
			delete(p.stops, id)
			p.mu.Unlock()
		})
	}
	p.stops[id] = stop
	return stop, nil
}

// Close stops every ticker.
func (p *Polling) Close() error {
	p.mu.Lock()
	p.closed = true
	stops := make([]func(), 0, len(p.stops))
	for _, s := range p.stops {
		stops = append(stops, s)
	}
	p.mu.Unlock()

	for _, s := range stops {
		s()
	}
	return nil
}

// Active returns the number of running tickers.
func (p *Polling) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stops)
}
