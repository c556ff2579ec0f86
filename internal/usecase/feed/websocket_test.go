package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFeedServer serves messages on each connection after checking the subscription, then
// closes the connection unless hold is set.
func newFeedServer(t *testing.T, messages []string, hold bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)

		var subscribe subscribeMessage
		if !assert.NoError(t, conn.ReadJSON(&subscribe)) {
			return
		}
		assert.Equal(t, "subscribe", subscribe.Type)
		assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, subscribe.ProductIDs)
		assert.Equal(t, []string{"full"}, subscribe.Channels)

		for _, message := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		}

		if hold {
			// wait for the client to go away
			_, _, _ = conn.ReadMessage()
		}
	}))
	t.Cleanup(server.Close)

	return server, &connections
}

func newTestWebsocketReader(server *httptest.Server, readTimeout time.Duration) *WebsocketReader {
	return NewWebsocketReader(config.FeedConfig{
		WebsocketURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Channels:     []string{"full"},
		ReadTimeout:  readTimeout,
	}, []string{"BTC-USD", "ETH-USD"}, logger.NewNopLogger())
}

func TestWebsocketReader_ReadEvent(t *testing.T) {
	server, connections := newFeedServer(t, []string{
		`{"type":"subscriptions","channels":[{"name":"full","product_ids":["BTC-USD","ETH-USD"]}]}`,
		`{"type":"open","sequence":10,"product_id":"BTC-USD","order_id":"a","side":"buy","price":"1","remaining_size":"2"}`,
		`not json`,
		`{"type":"done","sequence":11,"product_id":"BTC-USD","order_id":"a","reason":"canceled"}`,
	}, false)

	reader := newTestWebsocketReader(server, time.Second)
	defer reader.Close()
	ctx := context.Background()

	event, err := reader.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, feedv1.TypeSubscriptions, event.Type)

	event, err = reader.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, feedv1.TypeOpen, event.Type)
	assert.Equal(t, int64(10), event.Sequence)
	assert.NotEmpty(t, event.Raw)

	_, err = reader.ReadEvent(ctx)
	assert.True(t, errors.ErrorCodeEquals(err, errors.FeedDecodeError))

	// decode errors keep the connection
	event, err = reader.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), event.Sequence)
	assert.Equal(t, int32(1), connections.Load())

	// the server hung up
	_, err = reader.ReadEvent(ctx)
	assert.True(t, errors.ErrorCodeEquals(err, errors.FeedReadError))

	// next read reconnects and resubscribes
	event, err = reader.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, feedv1.TypeSubscriptions, event.Type)
	assert.Equal(t, int32(2), connections.Load())
}

func TestWebsocketReader_ReadTimeout(t *testing.T) {
	server, _ := newFeedServer(t, nil, true)

	reader := newTestWebsocketReader(server, 20*time.Millisecond)
	defer reader.Close()

	_, err := reader.ReadEvent(context.Background())
	assert.True(t, errors.ErrorCodeEquals(err, errors.FeedReadError))
}

func TestWebsocketReader_ContextCancel(t *testing.T) {
	server, _ := newFeedServer(t, nil, true)

	reader := newTestWebsocketReader(server, time.Minute)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := reader.ReadEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebsocketReader_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	reader := newTestWebsocketReader(server, time.Second)

	_, err := reader.ReadEvent(context.Background())
	assert.True(t, errors.ErrorCodeEquals(err, errors.FeedConnectError))
	assert.NoError(t, reader.Close())
}
