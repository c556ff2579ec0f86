package orderbookv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prices(limits []*Limit) []string {
	out := make([]string, len(limits))
	for i, l := range limits {
		out[i] = l.Price.String()
	}
	return out
}

func TestBookSide_Ordering(t *testing.T) {
	testCases := []struct {
		name     string
		side     Side
		insert   []string
		expected []string
		best     string
	}{
		{
			name:     "bids walk highest first",
			side:     Buy,
			insert:   []string{"200", "201.5", "9.99", "1000"},
			expected: []string{"1000", "201.5", "200", "9.99"},
			best:     "1000",
		},
		{
			name:     "asks walk lowest first",
			side:     Sell,
			insert:   []string{"200", "201.5", "9.99", "1000"},
			expected: []string{"9.99", "200", "201.5", "1000"},
			best:     "9.99",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			side := NewBookSide(tc.side)
			for _, p := range tc.insert {
				side.GetOrCreate(d(p))
			}

			assert.Equal(t, tc.side, side.Side())
			assert.Equal(t, len(tc.insert), side.Len())
			assert.Equal(t, tc.expected, prices(side.Limits()))
			require.NotNil(t, side.Best())
			assert.Equal(t, tc.best, side.Best().Price.String())
		})
	}
}

func TestBookSide_GetOrCreate_ExactPrice(t *testing.T) {
	side := NewBookSide(Buy)

	first := side.GetOrCreate(d("201"))
	second := side.GetOrCreate(d("201.00"))

	assert.Same(t, first, second)
	assert.Equal(t, 1, side.Len())
	assert.Same(t, first, side.Get(d("201.0")))
	assert.Nil(t, side.Get(d("201.01")))
}

func TestBookSide_Delete(t *testing.T) {
	side := NewBookSide(Sell)
	side.GetOrCreate(d("1"))
	side.GetOrCreate(d("2"))

	assert.True(t, side.Delete(d("1")))
	assert.False(t, side.Delete(d("1")))
	assert.Equal(t, []string{"2"}, prices(side.Limits()))

	assert.True(t, side.Delete(d("2")))
	assert.Nil(t, side.Best())
	assert.Empty(t, side.Limits())
}

func TestBookSide_WalkStops(t *testing.T) {
	side := NewBookSide(Buy)
	for _, p := range []string{"1", "2", "3"} {
		side.GetOrCreate(d(p))
	}

	var visited []string
	side.Walk(func(limit *Limit) bool {
		visited = append(visited, limit.Price.String())
		return len(visited) < 2
	})

	assert.Equal(t, []string{"3", "2"}, visited)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("buy")
	require.NoError(t, err)
	assert.True(t, side.IsBid())

	side, err = ParseSide("sell")
	require.NoError(t, err)
	assert.False(t, side.IsBid())

	_, err = ParseSide("bid")
	assert.ErrorIs(t, err, ErrInvalidSide)
}
