package reload

import "sync"

// EventType distinguishes between file event kinds.
type EventType int

const (
	// EventWrite indicates a source file was created or modified and
	// should be re-parsed.
	EventWrite EventType = iota + 1
	// EventRemove indicates a source file was removed or renamed away and
	// should be dropped from the registry.
	EventRemove
)

// Event is one file change to process.
type Event struct {
	Type EventType
	Path string
}

// eventQueue is a thread-safe FIFO queue for file events.
//
// The queue is unbounded so a burst of watcher notifications never blocks
// the watcher goroutine. Thread-safety covers external enqueuing (watcher,
// tests) while the reload loop dequeues.
//
// A buffered signal channel (size 1) enables context-aware waiting in the
// Run loop; multiple signals coalesce.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close marks the queue closed; further Enqueue calls return false.
// Events already queued can still be dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
