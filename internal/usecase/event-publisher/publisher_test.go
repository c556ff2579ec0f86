package eventpublisher

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/muhammadchandra19/booksync/internal/app/engine"
	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	logger_mock "github.com/muhammadchandra19/booksync/pkg/logger/mock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Notify(t *testing.T) {
	raw := `{"type":"done","sequence":7,"product_id":"BTC-USD","order_id":"a","reason":"filled"}`
	event, err := feedv1.Decode([]byte(raw))
	require.NoError(t, err)

	testCases := []struct {
		name         string
		notification engine.Notification
		wantMessages int
	}{
		{
			name:         "event is forwarded",
			notification: engine.Notification{Kind: engine.KindEvent, ProductID: "BTC-USD", Event: event, Sequence: 7},
			wantMessages: 1,
		},
		{
			name:         "lifecycle notifications are ignored",
			notification: engine.Notification{Kind: engine.KindLoadStarted, ProductID: "BTC-USD"},
		},
		{
			name:         "event kind without event",
			notification: engine.Notification{Kind: engine.KindEvent, ProductID: "BTC-USD"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			writer := &fakeWriter{}
			publisher := &Publisher{kafkaWriter: writer, logger: logger.NewNopLogger()}

			publisher.Notify(tc.notification)

			require.Len(t, writer.messages, tc.wantMessages)
			if tc.wantMessages > 0 {
				assert.Equal(t, "BTC-USD", string(writer.messages[0].Key))
				assert.JSONEq(t, raw, string(writer.messages[0].Value))
			}

			require.NoError(t, publisher.Close())
			assert.True(t, writer.closed)
		})
	}
}

func TestPublisher_NotifyLogsWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger_mock.NewMockInterface(ctrl)
	log.EXPECT().Error(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(err error, _ ...logger.Field) {
		assert.True(t, errors.ErrorCodeEquals(err, errors.EventPublishError))
	})

	publisher := &Publisher{kafkaWriter: &fakeWriter{err: stderrors.New("broker down")}, logger: log}
	publisher.Notify(engine.Notification{
		Kind:      engine.KindEvent,
		ProductID: "BTC-USD",
		Event:     &feedv1.Event{Type: feedv1.TypeHeartbeat, Sequence: 1, ProductID: "BTC-USD"},
	})
}
