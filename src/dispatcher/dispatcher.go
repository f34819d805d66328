// Package dispatcher fans gateway domain events out to subscribers.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hendrywilliam/tether/src/events"
)

type Handler func(ctx context.Context, event events.Event)

type delivery struct {
	ctx   context.Context
	event events.Event
}

// subscriber owns an unbounded FIFO drained by a single goroutine, so a slow
// handler only delays its own queue and events reach it in publish order.
type subscriber struct {
	id      uint64
	handler Handler

	mu       sync.Mutex
	queue    []delivery
	draining bool // deliver what is queued, then exit
	stopped  bool // exit without delivering the rest
	wake     chan struct{}
}

func (s *subscriber) push(d delivery) bool {
	s.mu.Lock()
	if s.stopped || s.draining {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, d)
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until a delivery is available. ok is false when the subscriber
// should exit.
func (s *subscriber) next() (d delivery, ok bool) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.queue = nil
			s.mu.Unlock()
			return delivery{}, false
		}
		if len(s.queue) > 0 {
			d = s.queue[0]
			s.queue[0] = delivery{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return d, true
		}
		if s.draining {
			s.mu.Unlock()
			return delivery{}, false
		}
		s.mu.Unlock()
		<-s.wake
	}
}

// Dispatcher delivers every published event to all current subscribers.
// Publish never blocks on handlers and a panicking handler does not affect the
// publisher or other subscribers.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   []*subscriber
	nextID atomic.Uint64
	closed atomic.Bool
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{log: logger}
}

// Subscribe registers handler for events published from now on. The returned
// function unsubscribes; events still queued for the handler are dropped.
func (d *Dispatcher) Subscribe(handler Handler) func() {
	sub := &subscriber{
		id:      d.nextID.Add(1),
		handler: handler,
		wake:    make(chan struct{}, 1),
	}

	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		return func() {}
	}
	d.subs = append(d.subs, sub)
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			for i, s := range d.subs {
				if s.id == sub.id {
					d.subs = append(d.subs[:i], d.subs[i+1:]...)
					break
				}
			}
			d.mu.Unlock()

			sub.mu.Lock()
			sub.stopped = true
			sub.mu.Unlock()
			sub.signal()
		})
	}
}

// Publish queues event for every current subscriber and returns immediately.
func (d *Dispatcher) Publish(ctx context.Context, event events.Event) {
	if d.closed.Load() {
		return
	}
	d.mu.RLock()
	subs := make([]*subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		sub.push(delivery{ctx: ctx, event: event})
	}
}

// Subscribers reports how many handlers are registered.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close stops accepting events, lets every subscriber finish what is already
// queued and waits for them. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed.Swap(true) {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.draining = true
		sub.mu.Unlock()
		sub.signal()
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(sub *subscriber) {
	defer d.wg.Done()
	for {
		item, ok := sub.next()
		if !ok {
			return
		}
		d.deliver(sub, item)
	}
}

func (d *Dispatcher) deliver(sub *subscriber, item delivery) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked",
				"subscriber", sub.id,
				"event", item.event.Kind().String(),
				"panic", r,
			)
		}
	}()
	sub.handler(item.ctx, item.event)
}
