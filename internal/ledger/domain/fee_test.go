package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeSplit(t *testing.T) {
	cases := []struct {
		name       string
		gross      int64
		feePercent int64
		fee        int64
		net        int64
	}{
		{name: "even split", gross: 1000, feePercent: 20, fee: 200, net: 800},
		{name: "rounds half up", gross: 999, feePercent: 20, fee: 200, net: 799},
		{name: "odd cents", gross: 101, feePercent: 15, fee: 15, net: 86},
		{name: "single cent", gross: 1, feePercent: 20, fee: 0, net: 1},
		{name: "zero percent", gross: 1000, feePercent: 0, fee: 0, net: 1000},
		{name: "full percent", gross: 1000, feePercent: 100, fee: 1000, net: 0},
		{name: "over hundred clamps", gross: 1000, feePercent: 150, fee: 1000, net: 0},
		{name: "zero gross", gross: 0, feePercent: 20, fee: 0, net: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, net := FeeSplit(tc.gross, tc.feePercent)
			assert.Equal(t, tc.fee, fee)
			assert.Equal(t, tc.net, net)
			assert.Equal(t, tc.gross, fee+net)
		})
	}
}

func TestFeeSplit_InvariantHolds(t *testing.T) {
	for gross := int64(1); gross <= 250; gross++ {
		for _, percent := range []int64{1, 7, 15, 20, 33, 50, 99} {
			fee, net := FeeSplit(gross, percent)
			assert.Equal(t, gross, fee+net, "gross=%d percent=%d", gross, percent)
			assert.GreaterOrEqual(t, fee, int64(0))
			assert.GreaterOrEqual(t, net, int64(0))
		}
	}
}
