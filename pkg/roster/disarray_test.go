package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisarrayLevelFixedPoints(t *testing.T) {
	cases := []struct{ count, want int }{
		{0, 1},
		{1, 1},
		{20, 1},
		{21, 2},
		{22, 3},
		{30, 11},
		{35, 15}, // gap row: 35 sits between thresholds 34 and 36
		{411, 66},
		{412, 67},
		{445, 67},
		{1000, 67}, // clamps at the table maximum
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DisarrayLevel(tc.count), "count %d", tc.count)
	}
}

func TestDisarrayLevelMonotonic(t *testing.T) {
	prev := DisarrayLevel(0)
	for c := 1; c <= 500; c++ {
		cur := DisarrayLevel(c)
		if cur < prev {
			t.Fatalf("level decreased at count %d: %d -> %d", c, prev, cur)
		}
		prev = cur
	}
}
