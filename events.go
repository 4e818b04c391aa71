package arkpay

import (
	"fmt"
	"sync"

	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/types"
)

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventAborted   EventKind = "aborted"
	EventCompleted EventKind = "completed"
	EventExpired   EventKind = "expired"
	EventError     EventKind = "error"
)

// Event is delivered to handlers. Which fields are set depends on Kind:
// Session for started and expired, Reason for aborted, Transaction for
// completed, Phase and Err for error.
type Event struct {
	Kind        EventKind
	Session     *types.Session
	Reason      string
	Transaction *types.Transaction
	Phase       string
	Err         error
}

// Handler receives events. Handlers run synchronously on the goroutine that
// emits and must not block.
type Handler func(Event)

// Emitter fans events out to registered handlers in registration order.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
	any      []Handler
	logger   logger.Logger
}

func newEmitter(log logger.Logger) *Emitter {
	return &Emitter{handlers: make(map[EventKind][]Handler), logger: log}
}

// On registers h for kind.
func (e *Emitter) On(kind EventKind, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = append(e.handlers[kind], h)
}

// OnAny registers h for every kind.
func (e *Emitter) OnAny(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.any = append(e.any, h)
}

func (e *Emitter) emit(ev Event) {
	e.mu.RLock()
	list := make([]Handler, 0, len(e.handlers[ev.Kind])+len(e.any))
	list = append(list, e.handlers[ev.Kind]...)
	list = append(list, e.any...)
	e.mu.RUnlock()

	for _, h := range list {
		e.call(h, ev)
	}
}

func (e *Emitter) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked", map[string]any{
				"event": string(ev.Kind),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	h(ev)
}
