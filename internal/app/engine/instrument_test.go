package engine

import (
	stderrors "errors"
	"testing"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instrumentFixture drives an instrument by hand and records what it asked for.
type instrumentFixture struct {
	inst          *instrument
	book          *orderbook.Orderbook
	fetches       []uint64
	retries       []int
	notifications []Notification
}

func newInstrumentFixture(t *testing.T) *instrumentFixture {
	t.Helper()

	f := &instrumentFixture{book: orderbook.NewOrderbook()}
	f.inst = newInstrument("BTC-USD", f.book, logger.NewNopLogger())
	f.inst.fetch = func(generation uint64, resyncID string) {
		assert.NotEmpty(t, resyncID)
		f.fetches = append(f.fetches, generation)
	}
	f.inst.retry = func(generation uint64, attempt int) {
		f.retries = append(f.retries, attempt)
	}
	f.inst.notify = func(n Notification) {
		f.notifications = append(f.notifications, n)
	}
	return f
}

// synced loads snapshot at sequence and clears recorded calls.
func (f *instrumentFixture) synced(t *testing.T, snapshot *snapshotv1.Snapshot) {
	t.Helper()

	f.inst.resync(reasonTrack)
	f.inst.handleSnapshot(f.inst.generation, snapshot, nil)
	require.Equal(t, StateSynced, f.inst.state)

	f.fetches = nil
	f.retries = nil
	f.notifications = nil
}

func (f *instrumentFixture) kinds() []Kind {
	kinds := make([]Kind, 0, len(f.notifications))
	for _, n := range f.notifications {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (f *instrumentFixture) lastGeneration() uint64 {
	return f.fetches[len(f.fetches)-1]
}

func snapshotAt(sequence int64, bids ...snapshotv1.Entry) *snapshotv1.Snapshot {
	return &snapshotv1.Snapshot{Sequence: sequence, Bids: bids}
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func forProduct(productID string, event *feedv1.Event) *feedv1.Event {
	event.ProductID = productID
	return event
}

func heartbeat(sequence int64) *feedv1.Event {
	return &feedv1.Event{Type: feedv1.TypeHeartbeat, Sequence: sequence, ProductID: "BTC-USD"}
}

func open(sequence int64, id, side, price, size string) *feedv1.Event {
	return &feedv1.Event{
		Type: feedv1.TypeOpen, Sequence: sequence, ProductID: "BTC-USD",
		OrderID: id, Side: side, Price: dec(price), RemainingSize: dec(size),
	}
}

func done(sequence int64, id string) *feedv1.Event {
	return &feedv1.Event{Type: feedv1.TypeDone, Sequence: sequence, ProductID: "BTC-USD", OrderID: id, Reason: "canceled"}
}

func match(sequence int64, maker, side, price, size string) *feedv1.Event {
	return &feedv1.Event{
		Type: feedv1.TypeMatch, Sequence: sequence, ProductID: "BTC-USD",
		MakerOrderID: maker, TakerOrderID: "taker", Side: side, Price: dec(price), Size: dec(size),
	}
}

func change(sequence int64, id, side, price, oldSize, newSize string) *feedv1.Event {
	return &feedv1.Event{
		Type: feedv1.TypeChange, Sequence: sequence, ProductID: "BTC-USD",
		OrderID: id, Side: side, Price: dec(price), OldSize: dec(oldSize), NewSize: dec(newSize),
	}
}

func TestInstrument_ResyncStartsLoading(t *testing.T) {
	f := newInstrumentFixture(t)
	assert.Equal(t, StateUnsynced, f.inst.currentStatus().State)

	f.inst.resync(reasonTrack)
	f.inst.publishStatus()

	assert.Equal(t, StateLoading, f.inst.state)
	assert.Equal(t, []uint64{1}, f.fetches)
	assert.Equal(t, []Kind{KindLoadStarted}, f.kinds())

	status := f.inst.currentStatus()
	assert.Equal(t, StateLoading, status.State)
	assert.Equal(t, uint64(1), status.Generation)
}

func TestInstrument_BuffersWhileLoadingAndReplays(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)

	f.inst.handleEvent(open(11, "old", "buy", "99", "1"))
	f.inst.handleEvent(open(12, "A", "buy", "100", "2"))
	f.inst.handleEvent(match(13, "A", "buy", "100", "0.5"))
	assert.Len(t, f.inst.pending, 3)
	assert.Equal(t, 0, f.book.Len())

	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(11, snapshotv1.NewEntry("50", "1", "S")), nil)

	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(13), f.inst.sequence)
	assert.Empty(t, f.inst.pending)

	// 11 is covered by the snapshot
	_, err := f.book.Get("old")
	assert.Error(t, err)

	a, err := f.book.Get("A")
	require.NoError(t, err)
	assert.Equal(t, "1.5", a.Size.String())

	assert.Equal(t, []Kind{KindLoadStarted, KindEvent, KindEvent, KindEvent, KindLoadSucceeded}, f.kinds())
	assert.Equal(t, int64(11), f.notifications[4].Sequence)
}

func TestInstrument_SequenceHandling(t *testing.T) {
	f := newInstrumentFixture(t)
	f.synced(t, snapshotAt(6, snapshotv1.NewEntry("100", "1", "X")))

	// duplicates and already applied events are dropped
	f.inst.handleEvent(done(5, "X"))
	f.inst.handleEvent(done(6, "X"))
	assert.Equal(t, int64(6), f.inst.sequence)
	assert.Equal(t, 1, f.book.Len())

	f.inst.handleEvent(heartbeat(7))
	assert.Equal(t, int64(7), f.inst.sequence)

	f.inst.handleEvent(done(8, "X"))
	assert.Equal(t, int64(8), f.inst.sequence)
	assert.Equal(t, 0, f.book.Len())

	// unknown ids are a normal negative result
	f.inst.handleEvent(done(9, "never-opened"))
	assert.Equal(t, int64(9), f.inst.sequence)
	assert.Equal(t, StateSynced, f.inst.state)
	assert.Empty(t, f.fetches)

	// every event is forwarded, applied or not
	assert.Equal(t, []Kind{KindEvent, KindEvent, KindEvent, KindEvent, KindEvent}, f.kinds())
}

func TestInstrument_GapRecovery(t *testing.T) {
	f := newInstrumentFixture(t)
	f.synced(t, snapshotAt(6, snapshotv1.NewEntry("100", "1", "X")))

	f.inst.handleEvent(open(5, "stale5", "buy", "90", "1"))
	f.inst.handleEvent(open(6, "stale6", "buy", "90", "1"))
	f.inst.handleEvent(open(9, "stale9", "buy", "90", "1"))

	require.Equal(t, StateLoading, f.inst.state)
	require.Len(t, f.fetches, 1)
	assert.Equal(t, []Kind{KindEvent, KindEvent, KindEvent, KindGapDetected, KindLoadStarted}, f.kinds())

	gap := f.notifications[3]
	assert.Equal(t, int64(7), gap.Expected)
	assert.Equal(t, int64(9), gap.Observed)

	// 9 waits for the new snapshot
	require.Len(t, f.inst.pending, 1)
	assert.Equal(t, int64(9), f.inst.pending[0].Sequence)

	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(10, snapshotv1.NewEntry("105", "2", "Z")), nil)

	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(10), f.inst.sequence)
	assert.Empty(t, f.inst.pending)

	state := f.book.Export()
	require.Len(t, state.Bids, 1)
	assert.Equal(t, "Z", state.Bids[0].ID)
	for _, id := range []string{"X", "stale5", "stale6", "stale9"} {
		_, err := f.book.Get(id)
		assert.Error(t, err, id)
	}
}

func TestInstrument_GapDuringReplayKeepsLaterEvents(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)

	f.inst.handleEvent(open(11, "A", "sell", "100", "1"))
	f.inst.handleEvent(open(13, "B", "sell", "101", "1"))
	f.inst.handleEvent(open(14, "C", "sell", "102", "1"))

	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(10), nil)

	assert.Equal(t, StateLoading, f.inst.state)
	assert.Equal(t, int64(11), f.inst.sequence)
	require.Len(t, f.inst.pending, 2)
	assert.Equal(t, int64(13), f.inst.pending[0].Sequence)
	assert.Equal(t, int64(14), f.inst.pending[1].Sequence)
	assert.Len(t, f.fetches, 2)

	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(13, snapshotv1.NewEntry("100", "1", "A")), nil)
	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(14), f.inst.sequence)
	assert.Equal(t, 2, f.book.Len())
}

func TestInstrument_ConsistencyViolationResyncs(t *testing.T) {
	testCases := []struct {
		name  string
		event *feedv1.Event
	}{
		{name: "maker is not head", event: match(7, "Y", "buy", "201", "1")},
		{name: "match at missing level", event: match(7, "X", "buy", "150", "1")},
		{name: "old size mismatch", event: change(7, "X", "buy", "201", "9", "3")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newInstrumentFixture(t)
			f.synced(t, snapshotAt(6,
				snapshotv1.NewEntry("201", "10", "X"),
				snapshotv1.NewEntry("201", "10", "Y"),
			))

			f.inst.handleEvent(tc.event)

			assert.Equal(t, StateLoading, f.inst.state)
			assert.Equal(t, []Kind{KindEvent, KindConsistencyViolation, KindLoadStarted}, f.kinds())
			assert.Error(t, f.notifications[1].Err)
			assert.Len(t, f.fetches, 1)
			assert.Empty(t, f.inst.pending)
		})
	}
}

func TestInstrument_UnappliableEventResyncs(t *testing.T) {
	noSide := match(7, "X", "", "201", "5")
	emptyOpen := open(7, "B", "buy", "200", "0")
	noPrice := open(7, "C", "sell", "1", "1")
	noPrice.Price = decimal.NullDecimal{}
	noNewSize := change(7, "X", "buy", "201", "10", "3")
	noNewSize.NewSize = decimal.NullDecimal{}

	testCases := []struct {
		name  string
		event *feedv1.Event
	}{
		{name: "match without side", event: noSide},
		{name: "open with zero size", event: emptyOpen},
		{name: "open without price", event: noPrice},
		{name: "change without new size", event: noNewSize},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newInstrumentFixture(t)
			f.synced(t, snapshotAt(6, snapshotv1.NewEntry("201", "10", "X")))

			f.inst.handleEvent(tc.event)

			assert.Equal(t, StateLoading, f.inst.state)
			assert.Equal(t, []Kind{KindEvent, KindConsistencyViolation, KindLoadStarted}, f.kinds())
			assert.Equal(t, int64(7), f.notifications[1].Sequence)
			assert.Error(t, f.notifications[1].Err)
			assert.Len(t, f.fetches, 1)

			// the next snapshot replaces whatever the book holds
			f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(7, snapshotv1.NewEntry("201", "5", "X")), nil)
			order, err := f.book.Get("X")
			require.NoError(t, err)
			assert.Equal(t, "5", order.Size.String())
			assert.Equal(t, 1, f.book.Len())
		})
	}
}

func TestInstrument_NonBookEventsAreNotApplied(t *testing.T) {
	f := newInstrumentFixture(t)
	f.synced(t, snapshotAt(6, snapshotv1.NewEntry("201", "10", "X")))

	// received carries no resting price; applying it as an open would fail
	f.inst.handleEvent(&feedv1.Event{Type: feedv1.TypeReceived, Sequence: 7, ProductID: "BTC-USD", OrderID: "M"})
	f.inst.handleEvent(&feedv1.Event{Type: feedv1.TypeActivate, Sequence: 8, ProductID: "BTC-USD"})

	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(8), f.inst.sequence)
	assert.Equal(t, []Kind{KindEvent, KindEvent}, f.kinds())
	assert.Equal(t, 1, f.book.Len())
}

func TestInstrument_StaleSnapshotIsDiscarded(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)
	first := f.lastGeneration()

	f.inst.resync(reasonRequested)
	second := f.lastGeneration()
	require.NotEqual(t, first, second)

	f.inst.handleSnapshot(first, snapshotAt(100, snapshotv1.NewEntry("1", "1", "stale")), nil)
	assert.Equal(t, StateLoading, f.inst.state)
	assert.Equal(t, 0, f.book.Len())

	f.inst.handleSnapshot(second, snapshotAt(50, snapshotv1.NewEntry("1", "1", "fresh")), nil)
	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(50), f.inst.sequence)

	_, err := f.book.Get("fresh")
	assert.NoError(t, err)

	// a late duplicate of the applied generation changes nothing either
	f.inst.handleSnapshot(second, snapshotAt(60), nil)
	assert.Equal(t, int64(50), f.inst.sequence)
}

func TestInstrument_FailedLoadRetries(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)
	f.inst.handleEvent(open(3, "A", "buy", "1", "1"))

	fetchErr := stderrors.New("503 service unavailable")
	f.inst.handleSnapshot(f.lastGeneration(), nil, fetchErr)

	assert.Equal(t, StateLoading, f.inst.state)
	assert.Equal(t, []int{1}, f.retries)
	assert.Equal(t, KindLoadFailed, f.notifications[len(f.notifications)-1].Kind)
	assert.ErrorIs(t, f.notifications[len(f.notifications)-1].Err, fetchErr)

	f.inst.publishStatus()
	assert.Equal(t, "503 service unavailable", f.inst.currentStatus().LastError)

	// a retry for another generation is ignored
	f.inst.handleRetry(f.lastGeneration() + 5)
	assert.Len(t, f.fetches, 1)

	f.inst.handleRetry(f.lastGeneration())
	require.Len(t, f.fetches, 2)

	f.inst.handleSnapshot(f.lastGeneration(), nil, fetchErr)
	assert.Equal(t, []int{1, 2}, f.retries)

	f.inst.handleRetry(f.lastGeneration())
	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(2), nil)

	// buffered events survive retries
	assert.Equal(t, StateSynced, f.inst.state)
	assert.Equal(t, int64(3), f.inst.sequence)
	_, err := f.book.Get("A")
	assert.NoError(t, err)

	f.inst.publishStatus()
	assert.Empty(t, f.inst.currentStatus().LastError)
}

func TestInstrument_InvalidSnapshotFails(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)

	f.inst.handleSnapshot(f.lastGeneration(), snapshotAt(5, snapshotv1.NewEntry("1", "0", "zero")), nil)

	assert.Equal(t, StateLoading, f.inst.state)
	assert.Equal(t, []int{1}, f.retries)
}

func TestInstrument_SnapshotExport(t *testing.T) {
	f := newInstrumentFixture(t)
	assert.Nil(t, f.inst.snapshot())

	f.synced(t, snapshotAt(6, snapshotv1.NewEntry("201", "10", "X")))
	f.inst.handleEvent(open(7, "A", "sell", "202", "1"))

	snapshot := f.inst.snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "BTC-USD", snapshot.ProductID)
	assert.Equal(t, int64(7), snapshot.Sequence)
	assert.Equal(t, 2, snapshot.Len())
}

func TestInstrument_Release(t *testing.T) {
	f := newInstrumentFixture(t)
	f.inst.resync(reasonTrack)
	generation := f.lastGeneration()
	f.inst.handleEvent(heartbeat(1))

	f.inst.release()

	assert.Equal(t, StateUnsynced, f.inst.state)
	assert.Empty(t, f.inst.pending)

	f.inst.handleSnapshot(generation, snapshotAt(1), nil)
	assert.Equal(t, StateUnsynced, f.inst.state)
}
