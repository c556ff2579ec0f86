package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
		assertFn func(t *testing.T, fetcher *Fetcher)
	}{
		{
			name:   "level 3 book",
			status: http.StatusOK,
			body: `{"sequence":3,"bids":[["295.96","0.05088265","3b0f1225-7f84-490b-a29f-0faef9de823a"]],
				"asks":[["295.97","5.72036512","da863862-25f4-4868-ac41-005d11ab0a5f"],["295.98","1","e7f1"]],"auction_mode":false}`,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"message":"Public rate limit exceeded"}`,
			wantCode: errors.SnapshotStatusError,
		},
		{
			name:     "malformed entry",
			status:   http.StatusOK,
			body:     `{"sequence":3,"bids":[["295.96","0.05"]],"asks":[]}`,
			wantCode: errors.SnapshotDecodeError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/products/BTC-USD/book", r.URL.Path)
				assert.Equal(t, "3", r.URL.Query().Get("level"))
				assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
				assert.NotEmpty(t, r.Header.Get("User-Agent"))

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			fetcher := NewFetcherWithClient(server.URL+"/", server.Client(), logger.NewNopLogger())
			ctx := util.WithRequestID(context.Background(), "req-1")

			snapshot, err := fetcher.Fetch(ctx, "BTC-USD", 3)
			if tc.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.ErrorCodeEquals(err, tc.wantCode), err.Error())
				assert.Nil(t, snapshot)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "BTC-USD", snapshot.ProductID)
			assert.Equal(t, int64(3), snapshot.Sequence)
			require.Len(t, snapshot.Bids, 1)
			require.Len(t, snapshot.Asks, 2)
			assert.Equal(t, "295.96", snapshot.Bids[0].Price.String())
			assert.Equal(t, "3b0f1225-7f84-490b-a29f-0faef9de823a", snapshot.Bids[0].OrderID)
			assert.Equal(t, "e7f1", snapshot.Asks[1].OrderID)
		})
	}
}

func TestFetcher_FetchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewFetcherWithClient(server.URL, server.Client(), logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, "BTC-USD", 3)
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.SnapshotFetchError))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
