package util

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestContextWithRequestID(t *testing.T) {
	testCases := []struct {
		name     string
		id       string
		assertFn func(t *testing.T, got string)
	}{
		{
			name: "keeps given id",
			id:   "req-1",
			assertFn: func(t *testing.T, got string) {
				assert.Equal(t, "req-1", got)
			},
		},
		{
			name: "generates uuid when empty",
			id:   "",
			assertFn: func(t *testing.T, got string) {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tc.id)
			tc.assertFn(t, GetRequestID(ctx))
		})
	}
}

func TestProductAndResyncID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetProductID(ctx))
	assert.Empty(t, GetResyncID(ctx))

	ctx = WithProductID(ctx, "BTC-USD")
	ctx = WithResyncID(ctx, "01J0000000000000000000000")

	assert.Equal(t, "BTC-USD", GetProductID(ctx))
	assert.Equal(t, "01J0000000000000000000000", GetResyncID(ctx))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetRequestID(WithProductID(context.Background(), "BTC-USD")))
}
