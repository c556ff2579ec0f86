package feed

import (
	"context"
	stderrors "errors"
	"testing"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageReader struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeMessageReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(f.messages) == 0 {
		return kafka.Message{}, f.err
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeMessageReader) Close() error {
	f.closed = true
	return nil
}

func TestKafkaReader_ReadEvent(t *testing.T) {
	testCases := []struct {
		name     string
		reader   *fakeMessageReader
		ctx      func() context.Context
		assertFn func(t *testing.T, event *feedv1.Event, err error)
	}{
		{
			name: "decodes message value",
			reader: &fakeMessageReader{messages: []kafka.Message{{
				Key:   []byte("BTC-USD"),
				Value: []byte(`{"type":"match","sequence":5,"product_id":"BTC-USD","maker_order_id":"m","taker_order_id":"t","side":"sell","price":"10","size":"1"}`),
			}}},
			assertFn: func(t *testing.T, event *feedv1.Event, err error) {
				require.NoError(t, err)
				assert.Equal(t, feedv1.TypeMatch, event.Type)
				assert.Equal(t, int64(5), event.Sequence)
				assert.Equal(t, "m", event.MakerOrderID)
			},
		},
		{
			name:   "undecodable value",
			reader: &fakeMessageReader{messages: []kafka.Message{{Value: []byte(`{}`)}}},
			assertFn: func(t *testing.T, event *feedv1.Event, err error) {
				assert.Nil(t, event)
				assert.True(t, errors.ErrorCodeEquals(err, errors.FeedDecodeError))
			},
		},
		{
			name:   "broker error",
			reader: &fakeMessageReader{err: stderrors.New("leader not available")},
			assertFn: func(t *testing.T, event *feedv1.Event, err error) {
				assert.Nil(t, event)
				assert.True(t, errors.ErrorCodeEquals(err, errors.FeedReadError))
			},
		},
		{
			name:   "cancelled context",
			reader: &fakeMessageReader{},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			assertFn: func(t *testing.T, event *feedv1.Event, err error) {
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}

			reader := &KafkaReader{kafkaReader: tc.reader, logger: logger.NewNopLogger()}
			event, err := reader.ReadEvent(ctx)
			tc.assertFn(t, event, err)

			require.NoError(t, reader.Close())
			assert.True(t, tc.reader.closed)
		})
	}
}
