package engine

import (
	stderrors "errors"
	"sync/atomic"
	"time"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/oklog/ulid/v2"
)

// State is the sync state of one instrument.
type State string

const (
	StateUnsynced State = "unsynced"
	StateLoading  State = "loading"
	StateSynced   State = "synced"
)

// Status is a point-in-time view of an instrument's sync state.
type Status struct {
	ProductID  string    `json:"productId"`
	State      State     `json:"state"`
	Sequence   int64     `json:"sequence"`
	Pending    int       `json:"pending"`
	Generation uint64    `json:"generation"`
	Orders     int       `json:"orders"`
	SyncedAt   time.Time `json:"syncedAt,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}

const (
	reasonTrack       = "track"
	reasonGap         = "sequence_gap"
	reasonConsistency = "consistency_violation"
	reasonRequested   = "requested"
)

// instrument is the sync state machine of one book. It is driven by a single goroutine and
// never blocks: snapshot fetches and retry timers are delegated to the fetch and retry hooks,
// whose results come back through handleSnapshot and handleRetry.
type instrument struct {
	productID string
	book      orderbookv1.Orderbook
	logger    logger.Interface

	state      State
	sequence   int64
	pending    []*feedv1.Event
	generation uint64
	resyncID   string
	attempts   int
	lastErr    error
	syncedAt   time.Time

	fetch  func(generation uint64, resyncID string)
	retry  func(generation uint64, attempt int)
	notify func(n Notification)
	now    func() time.Time

	status atomic.Pointer[Status]
}

func newInstrument(productID string, book orderbookv1.Orderbook, log logger.Interface) *instrument {
	i := &instrument{
		productID: productID,
		book:      book,
		logger:    log,
		state:     StateUnsynced,
		fetch:     func(uint64, string) {},
		retry:     func(uint64, int) {},
		notify:    func(Notification) {},
		now:       time.Now,
	}
	i.publishStatus()
	return i
}

// resync drops the pending buffer and starts loading a fresh snapshot under a new generation.
func (i *instrument) resync(reason string) {
	i.generation++
	i.attempts = 0
	i.resyncID = ulid.Make().String()
	i.state = StateLoading
	i.pending = nil

	i.logger.Info("Resynchronizing book",
		logger.NewField("product_id", i.productID),
		logger.NewField("reason", reason),
		logger.NewField("generation", i.generation),
		logger.NewField("resync_id", i.resyncID),
	)

	i.startLoad()
}

func (i *instrument) startLoad() {
	i.notify(Notification{
		Kind:       KindLoadStarted,
		ProductID:  i.productID,
		Generation: i.generation,
		ResyncID:   i.resyncID,
	})
	i.fetch(i.generation, i.resyncID)
}

// handleEvent forwards the event to observers, then buffers it while loading or processes
// it when synced.
func (i *instrument) handleEvent(event *feedv1.Event) {
	i.notify(Notification{
		Kind:      KindEvent,
		ProductID: i.productID,
		Event:     event,
		Sequence:  event.Sequence,
	})

	if i.state != StateSynced {
		i.pending = append(i.pending, event)
		return
	}

	i.process(event)
}

// process validates the sequence of an event and applies it to the book.
func (i *instrument) process(event *feedv1.Event) {
	if event.Sequence <= i.sequence {
		i.logger.Debug("Dropping already applied event",
			logger.NewField("product_id", i.productID),
			logger.NewField("sequence", event.Sequence),
			logger.NewField("book_sequence", i.sequence),
		)
		return
	}

	if expected := i.sequence + 1; event.Sequence > expected {
		i.logger.Warn("Sequence gap detected",
			logger.NewField("product_id", i.productID),
			logger.NewField("expected", expected),
			logger.NewField("observed", event.Sequence),
		)
		i.notify(Notification{
			Kind:       KindGapDetected,
			ProductID:  i.productID,
			Expected:   expected,
			Observed:   event.Sequence,
			Generation: i.generation,
		})
		i.resync(reasonGap)
		// the gap event belongs to the new stream; replay drops it if the snapshot covers it
		i.pending = append(i.pending, event)
		return
	}

	err := i.apply(event)
	i.sequence = event.Sequence

	switch {
	case err == nil:
	case stderrors.Is(err, orderbookv1.ErrOrderNotFound) && !orderbookv1.IsConsistencyError(err):
		// done and change events routinely reference orders that never rested
		i.logger.Debug("Event references unknown order",
			logger.NewField("product_id", i.productID),
			logger.NewField("sequence", event.Sequence),
			logger.NewField("order_id", event.OrderID),
		)
	default:
		// the book no longer reflects the feed up to this sequence
		i.logger.Error(errors.TracerFromError(err),
			logger.NewField("product_id", i.productID),
			logger.NewField("sequence", event.Sequence),
			logger.NewField("type", event.Type),
			logger.NewField("consistency", orderbookv1.IsConsistencyError(err)),
		)
		i.notify(Notification{
			Kind:       KindConsistencyViolation,
			ProductID:  i.productID,
			Event:      event,
			Sequence:   event.Sequence,
			Generation: i.generation,
			Err:        err,
		})
		i.resync(reasonConsistency)
	}
}

// apply dispatches an in-sequence event to the book. Types that do not mutate the book
// are ignored.
func (i *instrument) apply(event *feedv1.Event) error {
	if !event.Type.MutatesBook() {
		return nil
	}

	switch event.Type {
	case feedv1.TypeOpen:
		order, err := event.ToOrder()
		if err != nil {
			return err
		}
		replaced, err := i.book.Add(order)
		if replaced {
			i.logger.Warn("Open replaced an order with the same ID",
				logger.NewField("product_id", i.productID),
				logger.NewField("order_id", order.ID),
				logger.NewField("sequence", event.Sequence),
			)
		}
		return err
	case feedv1.TypeDone:
		return i.book.Remove(event.OrderID)
	case feedv1.TypeMatch:
		trade, err := event.ToTrade()
		if err != nil {
			return err
		}
		return i.book.Match(trade)
	}

	change, err := event.ToChange()
	if err != nil {
		return err
	}
	return i.book.Change(change)
}

// handleSnapshot loads the result of the fetch issued for generation. Results of
// superseded fetches are discarded.
func (i *instrument) handleSnapshot(generation uint64, snapshot *snapshotv1.Snapshot, fetchErr error) {
	if generation != i.generation || i.state != StateLoading {
		i.logger.Debug("Discarding stale snapshot",
			logger.NewField("product_id", i.productID),
			logger.NewField("generation", generation),
			logger.NewField("current_generation", i.generation),
		)
		return
	}

	if err := i.load(snapshot, fetchErr); err != nil {
		i.attempts++
		i.lastErr = err
		i.logger.Error(err,
			logger.NewField("product_id", i.productID),
			logger.NewField("generation", generation),
			logger.NewField("resync_id", i.resyncID),
			logger.NewField("attempt", i.attempts),
		)
		i.notify(Notification{
			Kind:       KindLoadFailed,
			ProductID:  i.productID,
			Generation: generation,
			ResyncID:   i.resyncID,
			Err:        err,
		})
		i.retry(generation, i.attempts)
		return
	}

	i.state = StateSynced
	i.sequence = snapshot.Sequence
	i.attempts = 0
	i.lastErr = nil
	i.syncedAt = i.now()

	i.logger.Info("Book synchronized",
		logger.NewField("product_id", i.productID),
		logger.NewField("sequence", i.sequence),
		logger.NewField("orders", snapshot.Len()),
		logger.NewField("pending", len(i.pending)),
		logger.NewField("resync_id", i.resyncID),
	)
	i.notify(Notification{
		Kind:       KindLoadSucceeded,
		ProductID:  i.productID,
		Sequence:   i.sequence,
		Generation: generation,
		ResyncID:   i.resyncID,
	})

	i.replay()
}

func (i *instrument) load(snapshot *snapshotv1.Snapshot, fetchErr error) error {
	if fetchErr != nil {
		return fetchErr
	}
	if snapshot == nil {
		return errors.NewCodeTracer(errors.SnapshotLoadError).Wrap(orderbookv1.ErrNilSnapshot)
	}
	if err := i.book.LoadSnapshot(snapshot); err != nil {
		return errors.NewCodeTracer(errors.SnapshotLoadError).Wrap(err)
	}
	if err := i.book.Validate(); err != nil {
		return errors.NewCodeTracer(errors.SnapshotLoadError).Wrap(err)
	}
	return nil
}

// replay runs the buffered events through process in arrival order. If one of them
// triggers a new resync, the events after it stay buffered for the next snapshot.
func (i *instrument) replay() {
	pending := i.pending
	i.pending = nil

	for idx, event := range pending {
		i.process(event)
		if i.state != StateSynced {
			i.pending = append(i.pending, pending[idx+1:]...)
			return
		}
	}
}

// handleRetry refetches after a failed load, keeping the events buffered so far.
func (i *instrument) handleRetry(generation uint64) {
	if generation != i.generation || i.state != StateLoading {
		return
	}

	i.generation++
	i.logger.Info("Retrying snapshot load",
		logger.NewField("product_id", i.productID),
		logger.NewField("generation", i.generation),
		logger.NewField("attempt", i.attempts+1),
		logger.NewField("resync_id", i.resyncID),
	)
	i.startLoad()
}

// snapshot returns the book with its sequence, or nil while the book is not synced.
func (i *instrument) snapshot() *snapshotv1.Snapshot {
	if i.state != StateSynced {
		return nil
	}
	snapshot := i.book.CreateSnapshot()
	snapshot.ProductID = i.productID
	snapshot.Sequence = i.sequence
	return snapshot
}

// release drops buffered events and invalidates any outstanding fetch.
func (i *instrument) release() {
	i.generation++
	i.state = StateUnsynced
	i.pending = nil
}

func (i *instrument) publishStatus() {
	status := &Status{
		ProductID:  i.productID,
		State:      i.state,
		Sequence:   i.sequence,
		Pending:    len(i.pending),
		Generation: i.generation,
		Orders:     i.book.Len(),
		SyncedAt:   i.syncedAt,
	}
	if i.lastErr != nil {
		status.LastError = i.lastErr.Error()
	}
	i.status.Store(status)
}

func (i *instrument) currentStatus() Status {
	return *i.status.Load()
}
