package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 64

type DispatcherOption func(*Dispatcher)

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.size = n
		}
	}
}

func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// Dispatcher decouples publishers from an Emitter. Publish never waits: a
// message that does not fit in the queue is dropped. Messages are emitted in
// publish order by a single goroutine; emitter failures are logged and
// otherwise ignored.
type Dispatcher struct {
	emitter Emitter
	size    int
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

func NewDispatcher(e Emitter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		emitter: e,
		size:    DefaultQueueSize,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan Message, d.size)
	d.done = make(chan struct{})
	go d.run()
	return d
}

// Publish queues m and reports whether it was accepted.
func (d *Dispatcher) Publish(m Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- m:
		return true
	default:
		return false
	}
}

// Close stops accepting messages and waits until the queued ones were emitted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for m := range d.queue {
		d.emit(m)
	}
}

func (d *Dispatcher) emit(m Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("recipient_id", m.RecipientID).
				Str("event", m.Event).
				Err(fmt.Errorf("%v", r)).
				Msg("notification emitter panicked")
		}
	}()

	err := d.emitter.Emit(m.RecipientID, m.Event, m.Payload)
	if err == nil {
		return
	}
	ev := d.log.Warn()
	if errors.Is(err, ErrRecipientNotFound) {
		ev = d.log.Debug()
	}
	ev.Err(err).
		Str("recipient_id", m.RecipientID).
		Str("event", m.Event).
		Msg("failed to emit notification")
}
