package devtools

import "github.com/codefionn/devtap/internal/protocol"

// queueItem is the tagged value carried by the outbound queue: either an
// envelope to transmit or the shutdown sentinel that ends the sender.
type queueItem struct {
	env      *protocol.Envelope
	shutdown bool
}

// logQueue is the bounded FIFO between log producers and the sender task.
// Producers use the non-blocking tryEnqueue and account for overflow
// themselves; the single consumer blocks on dequeue. Capacity is fixed for
// the life of the session.
type logQueue struct {
	ch chan queueItem
}

func newLogQueue(capacity int) *logQueue {
	return &logQueue{ch: make(chan queueItem, capacity)}
}

// tryEnqueue appends env without ever suspending the caller. Returns false
// iff the queue is full.
func (q *logQueue) tryEnqueue(env *protocol.Envelope) bool {
	select {
	case q.ch <- queueItem{env: env}:
		return true
	default:
		return false
	}
}

// enqueueShutdown blocks until the sentinel is queued. Records already in
// the queue keep their position ahead of it, so the sender flushes them
// before exiting. The abort channel covers a sender that already died with
// a full queue, which would otherwise block shutdown forever.
func (q *logQueue) enqueueShutdown(abort <-chan struct{}) {
	select {
	case q.ch <- queueItem{shutdown: true}:
	case <-abort:
	}
}

// dequeue blocks until an item is available. Single consumer only.
func (q *logQueue) dequeue() queueItem {
	return <-q.ch
}

func (q *logQueue) len() int {
	return len(q.ch)
}

func (q *logQueue) cap() int {
	return cap(q.ch)
}
