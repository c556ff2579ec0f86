package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muhammadchandra19/booksync/internal/app/engine"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Notify(t *testing.T) {
	m := NewMetrics()

	notifications := []engine.Notification{
		{Kind: engine.KindLoadStarted, ProductID: "BTC-USD"},
		{Kind: engine.KindEvent, ProductID: "BTC-USD", Sequence: 10, Event: &feedv1.Event{Type: feedv1.TypeOpen}},
		{Kind: engine.KindEvent, ProductID: "BTC-USD", Sequence: 11, Event: &feedv1.Event{Type: feedv1.TypeOpen}},
		{Kind: engine.KindEvent, ProductID: "BTC-USD", Sequence: 12, Event: &feedv1.Event{Type: feedv1.TypeMatch}},
		{Kind: engine.KindLoadSucceeded, ProductID: "BTC-USD", Sequence: 9},
		{Kind: engine.KindGapDetected, ProductID: "BTC-USD", Expected: 13, Observed: 15},
		{Kind: engine.KindLoadStarted, ProductID: "BTC-USD"},
		{Kind: engine.KindEvent, ProductID: "", Event: &feedv1.Event{Type: feedv1.TypeSubscriptions}},
	}
	for _, n := range notifications {
		m.Notify(n)
	}

	testCases := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "open events", got: testutil.ToFloat64(m.events.WithLabelValues("BTC-USD", "open")), want: 2},
		{name: "match events", got: testutil.ToFloat64(m.events.WithLabelValues("BTC-USD", "match")), want: 1},
		{name: "unrouted events", got: testutil.ToFloat64(m.events.WithLabelValues("", "subscriptions")), want: 1},
		{name: "loads started", got: testutil.ToFloat64(m.notifications.WithLabelValues("BTC-USD", "load_started")), want: 2},
		{name: "gaps", got: testutil.ToFloat64(m.notifications.WithLabelValues("BTC-USD", "gap_detected")), want: 1},
		{name: "synced after resync started", got: testutil.ToFloat64(m.synced.WithLabelValues("BTC-USD")), want: 0},
		{name: "feed sequence", got: testutil.ToFloat64(m.feedSequence.WithLabelValues("BTC-USD")), want: 12},
		{name: "snapshot sequence", got: testutil.ToFloat64(m.bookSequence.WithLabelValues("BTC-USD")), want: 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.Notify(engine.Notification{Kind: engine.KindLoadSucceeded, ProductID: "ETH-USD", Sequence: 3})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `booksync_book_synced{product="ETH-USD"} 1`)
	assert.Contains(t, string(body), `booksync_snapshot_sequence{product="ETH-USD"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
