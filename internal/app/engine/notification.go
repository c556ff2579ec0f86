package engine

import feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"

// Kind identifies a notification.
type Kind string

const (
	// KindEvent carries a raw feed event, emitted once per consumed event.
	KindEvent Kind = "event"
	// KindLoadStarted is emitted when a snapshot fetch is issued.
	KindLoadStarted Kind = "load_started"
	// KindLoadSucceeded is emitted when a snapshot was loaded into the book.
	KindLoadSucceeded Kind = "load_succeeded"
	// KindLoadFailed is emitted when a snapshot could not be fetched or loaded.
	KindLoadFailed Kind = "load_failed"
	// KindGapDetected is emitted when an event skips ahead of the expected sequence.
	KindGapDetected Kind = "gap_detected"
	// KindConsistencyViolation is emitted when an event contradicts the book.
	KindConsistencyViolation Kind = "consistency_violation"
)

// Notification is what observers receive. Only the fields relevant to Kind are set.
type Notification struct {
	Kind       Kind
	ProductID  string
	Event      *feedv1.Event
	Sequence   int64
	Expected   int64
	Observed   int64
	Generation uint64
	ResyncID   string
	Err        error
}

// Observer receives engine notifications. Notify is called from the goroutine that owns
// the instrument, so it must return quickly; it must also be safe for concurrent use since
// instruments run in parallel.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(n Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n Notification) {
	f(n)
}
