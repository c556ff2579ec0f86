package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/util"
)

// Engine keeps one order book per tracked instrument in sync with the feed. Each instrument
// is owned by a single goroutine fed through a mailbox, so books are only ever mutated by
// their own writer while instruments proceed independently of each other.
type Engine struct {
	// Core components
	fetcher snapshotv1.Fetcher
	store   snapshotv1.Store
	logger  logger.Interface
	options *Options

	mu      sync.RWMutex
	workers map[string]*worker
	started bool

	observersMu  sync.RWMutex
	observers    []observerEntry
	nextObserver uint64

	// Simple shutdown coordination
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type observerEntry struct {
	id       uint64
	observer Observer
}

type messageKind int

const (
	msgEvent messageKind = iota
	msgSnapshot
	msgRetry
	msgResync
	msgExport
)

type message struct {
	kind       messageKind
	event      *feedv1.Event
	generation uint64
	snapshot   *snapshotv1.Snapshot
	err        error
	reply      chan *snapshotv1.Snapshot
}

// worker owns an instrument. Only its goroutine touches inst, fetchCancel and retryTimer.
type worker struct {
	inst    *instrument
	book    *orderbook.Orderbook
	mailbox chan message
	backoff *backoff.ExponentialBackOff

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	fetchCancel context.CancelFunc
	retryTimer  *time.Timer

	// closed is set once the writer stops taking events; senders hold closeMu for reading.
	closeMu sync.RWMutex
	closed  bool
}

// deliver queues event for the writer. It reports false, with no error, once the writer
// has stopped taking events.
func (w *worker) deliver(ctx context.Context, event *feedv1.Event) (bool, error) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return false, nil
	}

	select {
	case w.mailbox <- message{kind: msgEvent, event: event}:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.ctx.Done():
		return false, nil
	}
}

func (w *worker) post(msg message) bool {
	select {
	case w.mailbox <- msg:
		return true
	case <-w.ctx.Done():
		return false
	}
}

// NewEngine creates a new instance of Engine with the provided dependencies.
// store may be nil, which disables checkpoints.
func NewEngine(fetcher snapshotv1.Fetcher, store snapshotv1.Store, logger logger.Interface) *Engine {
	return NewEngineWithOptions(fetcher, store, logger, DefaultEngineOptions())
}

// NewEngineWithOptions creates a new engine with custom options
func NewEngineWithOptions(
	fetcher snapshotv1.Fetcher,
	store snapshotv1.Store,
	logger logger.Interface,
	options *Options,
) *Engine {
	if options == nil {
		options = DefaultEngineOptions()
	}

	return &Engine{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		options: options,
		workers: make(map[string]*worker),
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (e *Engine) Subscribe(observer Observer) func() {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()

	e.nextObserver++
	id := e.nextObserver
	e.observers = append(e.observers, observerEntry{id: id, observer: observer})

	return func() {
		e.observersMu.Lock()
		defer e.observersMu.Unlock()

		for idx, entry := range e.observers {
			if entry.id == id {
				e.observers = append(e.observers[:idx:idx], e.observers[idx+1:]...)
				return
			}
		}
	}
}

func (e *Engine) notify(n Notification) {
	e.observersMu.RLock()
	observers := e.observers
	e.observersMu.RUnlock()

	for _, entry := range observers {
		entry.observer.Notify(n)
	}
}

// Start initializes the engine and starts processing routines.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	// Create cancellable context
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.started = true

	if e.store != nil && e.options.CheckpointInterval > 0 {
		e.wg.Add(1)
		go e.runCheckpointManager()
	}

	e.logger.Info("Sync engine started",
		logger.NewField("snapshot_level", e.options.SnapshotLevel),
		logger.NewField("checkpoints", e.store != nil),
	)

	return nil
}

// Stop gracefully shuts down the engine
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.started = false
	e.workers = make(map[string]*worker)
	e.mu.Unlock()

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Sync engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Engine stop timeout exceeded")
		return ctx.Err()
	}
}

// Track starts keeping the book of productID in sync. The instrument starts unsynced and
// immediately begins loading its first snapshot.
func (e *Engine) Track(ctx context.Context, productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return errors.NewErrorDetails("engine is not started", string(errors.EngineNotStartedError), "engine")
	}
	if _, exists := e.workers[productID]; exists {
		return errors.NewErrorDetails(fmt.Sprintf("instrument %s is already tracked", productID),
			string(errors.InstrumentAlreadyTrackedError), "product_id")
	}

	book := orderbook.NewOrderbook()
	w := &worker{
		inst:    newInstrument(productID, book, e.logger),
		book:    book,
		mailbox: make(chan message, e.options.MailboxSize),
		backoff: e.newRetryBackoff(),
		done:    make(chan struct{}),
	}
	w.ctx, w.cancel = context.WithCancel(e.ctx)

	w.inst.notify = e.notify
	w.inst.fetch = func(generation uint64, resyncID string) {
		e.startFetch(w, generation, resyncID)
	}
	w.inst.retry = func(generation uint64, attempt int) {
		e.scheduleRetry(w, generation, attempt)
	}

	e.workers[productID] = w

	e.wg.Add(1)
	go e.runWorker(w)

	e.logger.InfoContext(util.WithProductID(ctx, productID), "Tracking instrument")

	return nil
}

// Untrack stops keeping productID in sync, dropping its buffered events and ignoring any
// snapshot still in flight. Events already queued for it are still forwarded to observers.
func (e *Engine) Untrack(productID string) error {
	e.mu.Lock()
	w, exists := e.workers[productID]
	delete(e.workers, productID)
	e.mu.Unlock()

	if !exists {
		return notTracked(productID)
	}

	w.cancel()
	e.logger.Info("Stopped tracking instrument", logger.NewField("product_id", productID))
	return nil
}

// Consume routes one decoded event to the writer of its instrument, blocking while that
// instrument's mailbox is full. Events for instruments that are not tracked are only
// forwarded to observers.
func (e *Engine) Consume(ctx context.Context, event *feedv1.Event) error {
	if event == nil {
		return errors.NewErrorDetails("event cannot be nil", string(errors.GeneralBadRequestError), "event")
	}

	if w := e.worker(event.ProductID); w != nil {
		delivered, err := w.deliver(ctx, event)
		if delivered || err != nil {
			return err
		}
	}

	e.forward(event)
	return nil
}

// forward hands an event that no writer will apply to the observers.
func (e *Engine) forward(event *feedv1.Event) {
	e.notify(Notification{
		Kind:      KindEvent,
		ProductID: event.ProductID,
		Event:     event,
		Sequence:  event.Sequence,
	})
}

// Run reads the feed until ctx is done. Read errors are logged and retried with backoff;
// reconnecting is up to the reader.
func (e *Engine) Run(ctx context.Context, reader feedv1.Reader) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.options.ReadErrorBackoff
	b.MaxInterval = e.options.RetryMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		event, err := reader.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.NewField("action", "read_event"))

			select {
			case <-time.After(b.NextBackOff()):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		b.Reset()
		if event == nil {
			continue
		}

		if err := e.Consume(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.WarnContext(ctx, "Event dropped",
				logger.NewField("product_id", event.ProductID),
				logger.NewField("sequence", event.Sequence),
				logger.NewField("error", err.Error()),
			)
		}
	}
}

// Resync discards the book of productID and reloads it from a fresh snapshot.
func (e *Engine) Resync(productID string) error {
	w := e.worker(productID)
	if w == nil {
		return notTracked(productID)
	}
	if !w.post(message{kind: msgResync}) {
		return notTracked(productID)
	}
	return nil
}

// Book returns the read-only view of productID's book.
func (e *Engine) Book(productID string) (orderbookv1.Reader, error) {
	w := e.worker(productID)
	if w == nil {
		return nil, notTracked(productID)
	}
	return w.book, nil
}

// Status returns the sync state of productID.
func (e *Engine) Status(productID string) (Status, error) {
	w := e.worker(productID)
	if w == nil {
		return Status{}, notTracked(productID)
	}
	return w.inst.currentStatus(), nil
}

// Statuses returns the sync state of every tracked instrument ordered by product.
func (e *Engine) Statuses() []Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	statuses := make([]Status, 0, len(e.workers))
	for _, w := range e.workers {
		statuses = append(statuses, w.inst.currentStatus())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ProductID < statuses[j].ProductID
	})
	return statuses
}

// Products returns the tracked instruments in order.
func (e *Engine) Products() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	products := make([]string, 0, len(e.workers))
	for productID := range e.workers {
		products = append(products, productID)
	}
	sort.Strings(products)
	return products
}

// Snapshot exports productID's book together with the sequence it reflects. The export is
// taken by the instrument's writer, so book and sequence always match.
func (e *Engine) Snapshot(ctx context.Context, productID string) (*snapshotv1.Snapshot, error) {
	w := e.worker(productID)
	if w == nil {
		return nil, notTracked(productID)
	}

	reply := make(chan *snapshotv1.Snapshot, 1)
	select {
	case w.mailbox <- message{kind: msgExport, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.ctx.Done():
		return nil, notTracked(productID)
	}

	select {
	case snapshot := <-reply:
		if snapshot == nil {
			return nil, errors.NewErrorDetails(fmt.Sprintf("book %s is not synced", productID),
				string(errors.BookNotSyncedError), "product_id")
		}
		return snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.ctx.Done():
		return nil, notTracked(productID)
	}
}

func (e *Engine) worker(productID string) *worker {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workers[productID]
}

// runWorker is the single writer of one instrument.
func (e *Engine) runWorker(w *worker) {
	defer e.wg.Done()
	defer close(w.done)
	defer e.release(w)

	w.inst.resync(reasonTrack)
	w.inst.publishStatus()

	for {
		select {
		case <-w.ctx.Done():
			e.drain(w)
			return
		case msg := <-w.mailbox:
			e.handle(w, msg)
			w.inst.publishStatus()
		}
	}
}

func (e *Engine) handle(w *worker, msg message) {
	switch msg.kind {
	case msgEvent:
		w.inst.handleEvent(msg.event)
	case msgSnapshot:
		w.inst.handleSnapshot(msg.generation, msg.snapshot, msg.err)
	case msgRetry:
		w.inst.handleRetry(msg.generation)
	case msgResync:
		w.inst.resync(reasonRequested)
	case msgExport:
		msg.reply <- w.inst.snapshot()
	}
}

// drain stops the worker from taking events and forwards the ones still queued without
// applying them. Other queued messages are dropped.
func (e *Engine) drain(w *worker) {
	w.closeMu.Lock()
	w.closed = true
	w.closeMu.Unlock()

	for {
		select {
		case msg := <-w.mailbox:
			if msg.kind == msgEvent {
				e.forward(msg.event)
			}
		default:
			return
		}
	}
}

func (e *Engine) release(w *worker) {
	if w.retryTimer != nil {
		w.retryTimer.Stop()
	}
	if w.fetchCancel != nil {
		w.fetchCancel()
	}
	w.inst.release()
	w.inst.publishStatus()
}

// startFetch fetches a snapshot in the background and posts the result, tagged with its
// generation, back to the worker. A previous fetch still in flight is cancelled.
func (e *Engine) startFetch(w *worker, generation uint64, resyncID string) {
	if w.fetchCancel != nil {
		w.fetchCancel()
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.fetchCancel = cancel
	ctx = util.WithProductID(ctx, w.inst.productID)
	ctx = util.WithResyncID(ctx, resyncID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		snapshot, err := e.fetcher.Fetch(ctx, w.inst.productID, e.options.SnapshotLevel)
		w.post(message{kind: msgSnapshot, generation: generation, snapshot: snapshot, err: err})
	}()
}

func (e *Engine) scheduleRetry(w *worker, generation uint64, attempt int) {
	if attempt <= 1 {
		w.backoff.Reset()
	}
	delay := w.backoff.NextBackOff()

	if w.retryTimer != nil {
		w.retryTimer.Stop()
	}
	w.retryTimer = time.AfterFunc(delay, func() {
		w.post(message{kind: msgRetry, generation: generation})
	})

	e.logger.Info("Snapshot retry scheduled",
		logger.NewField("product_id", w.inst.productID),
		logger.NewField("attempt", attempt),
		logger.NewField("delay", delay.String()),
	)
}

func (e *Engine) newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.options.RetryMinBackoff
	b.MaxInterval = e.options.RetryMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// runCheckpointManager handles periodic checkpoints
func (e *Engine) runCheckpointManager() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.options.CheckpointInterval)
	defer ticker.Stop()

	e.logger.Info("Starting checkpoint manager")

	stored := make(map[string]int64)
	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Checkpoint manager shutting down")
			return
		case <-ticker.C:
			for _, productID := range e.Products() {
				e.createAndStoreCheckpoint(productID, stored)
			}
		}
	}
}

// createAndStoreCheckpoint stores productID's book unless it is not synced or has not
// moved since the last checkpoint.
func (e *Engine) createAndStoreCheckpoint(productID string, stored map[string]int64) {
	ctx := util.WithProductID(e.ctx, productID)

	snapshot, err := e.Snapshot(ctx, productID)
	if err != nil {
		e.logger.DebugContext(ctx, "Skipping checkpoint", logger.NewField("reason", err.Error()))
		return
	}
	if last, ok := stored[productID]; ok && last == snapshot.Sequence {
		return
	}

	checkpoint := &snapshotv1.Checkpoint{Snapshot: snapshot, CreatedAt: time.Now().UTC()}
	if err := e.store.Store(ctx, checkpoint); err != nil {
		e.logger.ErrorContext(ctx, err, logger.NewField("action", "store_checkpoint"))
		return
	}
	stored[productID] = snapshot.Sequence
}

func notTracked(productID string) error {
	return errors.NewErrorDetails(fmt.Sprintf("instrument %s is not tracked", productID),
		string(errors.InstrumentNotTrackedError), "product_id")
}
