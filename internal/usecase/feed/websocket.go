package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
)

// subscribeMessage is the first message sent on every connection.
type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// WebsocketReader reads the exchange feed over a websocket. It connects lazily on the first
// read and again on the read after a connection failed, so the caller controls the
// reconnect pace. A new connection starts a new stream; the sync engine notices the
// resulting sequence gap and reloads the book.
type WebsocketReader struct {
	url         string
	productIDs  []string
	channels    []string
	readTimeout time.Duration
	dialer      *websocket.Dialer
	logger      logger.Interface

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ feedv1.Reader = (*WebsocketReader)(nil)

// NewWebsocketReader creates a reader subscribed to productIDs on the configured channels.
func NewWebsocketReader(cfg config.FeedConfig, productIDs []string, log logger.Interface) *WebsocketReader {
	return &WebsocketReader{
		url:         cfg.WebsocketURL,
		productIDs:  productIDs,
		channels:    cfg.Channels,
		readTimeout: cfg.ReadTimeout,
		dialer:      websocket.DefaultDialer,
		logger:      log,
	}
}

// ReadEvent returns the next decoded message. A failed connection is closed and the error
// returned; the next call dials again.
func (r *WebsocketReader) ReadEvent(ctx context.Context) (*feedv1.Event, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	// unblock the read when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if r.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(r.readTimeout))
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		r.drop(conn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewCodeTracer(errors.FeedReadError).Wrap(err)
	}

	event, err := feedv1.Decode(data)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.FeedDecodeError).Wrap(err)
	}

	switch event.Type {
	case feedv1.TypeError:
		r.logger.Warn("Feed reported an error", logger.NewField("message", event.Message))
	case feedv1.TypeSubscriptions:
		r.logger.Info("Feed subscription confirmed", logger.NewField("products", r.productIDs))
	}

	return event, nil
}

func (r *WebsocketReader) connection(ctx context.Context) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return r.conn, nil
	}

	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.FeedConnectError).Wrap(err)
	}

	subscribe := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: r.productIDs,
		Channels:   r.channels,
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		_ = conn.Close()
		return nil, errors.NewCodeTracer(errors.FeedConnectError).Wrap(err)
	}

	r.logger.Info("Connected to feed",
		logger.NewField("url", r.url),
		logger.NewField("products", r.productIDs),
		logger.NewField("channels", r.channels),
	)

	r.conn = conn
	return conn, nil
}

func (r *WebsocketReader) drop(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == conn {
		r.conn = nil
	}
	_ = conn.Close()
}

// Close closes the current connection, if any.
func (r *WebsocketReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := r.conn.Close()
	r.conn = nil
	return err
}
