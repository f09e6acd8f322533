package cgroups

import (
	"math"
	"testing"
)

func TestConvertCPUSharesToCgroupV2Value(t *testing.T) {
	cases := map[uint64]uint64{
		0:      100,
		1:      1,
		2:      1,
		1024:   39,
		262144: 10000,
		500000: 10000,
	}
	for shares, want := range cases {
		if got := ConvertCPUSharesToCgroupV2Value(shares); got != want {
			t.Errorf("ConvertCPUSharesToCgroupV2Value(%d) = %d, want %d", shares, got, want)
		}
	}

	// The remap has to be monotonic and bounded to [1, 10000] over the
	// whole legacy input range.
	prev := uint64(0)
	for shares := uint64(2); shares <= 262144; shares += 1021 {
		weight := ConvertCPUSharesToCgroupV2Value(shares)
		if weight < 1 || weight > 10000 {
			t.Fatalf("weight %d for shares %d is out of range", weight, shares)
		}
		if weight < prev {
			t.Fatalf("weight decreased from %d to %d at shares %d", prev, weight, shares)
		}
		prev = weight
	}
}

func TestConvertCPUQuotaCPUPeriodToCgroupV2Value(t *testing.T) {
	cases := []struct {
		quota  int64
		period uint64
		want   uint64
	}{
		{quota: -1, period: 0, want: math.MaxUint64},
		{quota: 0, period: 100000, want: math.MaxUint64},
		{quota: 1000000, period: 500000, want: 2000000},
		{quota: 500000, period: 1000000, want: 500000},
		// Period 0 falls back to the 100ms kernel default.
		{quota: 200000, period: 0, want: 2000000},
		// Already a 10ms multiple, no rounding.
		{quota: 10000, period: 100000, want: 100000},
		// Not aligned, rounded up rather than down.
		{quota: 10001, period: 100000, want: 110000},
		{quota: 1, period: 100000, want: 10000},
	}
	for _, c := range cases {
		got := ConvertCPUQuotaCPUPeriodToCgroupV2Value(c.quota, c.period)
		if got != c.want {
			t.Errorf("ConvertCPUQuotaCPUPeriodToCgroupV2Value(%d, %d) = %d, want %d",
				c.quota, c.period, got, c.want)
		}
		if c.quota > 0 && got%10000 != 0 {
			t.Errorf("result %d for quota %d is not a 10ms multiple", got, c.quota)
		}
	}
}

func TestConvertMemorySwapToCgroupV2Value(t *testing.T) {
	cases := []struct {
		memswap, memory int64
		want            int64
		wantErr         bool
	}{
		{memswap: 0, memory: 0, want: 0},
		{memswap: -1, memory: 0, want: -1},
		{memswap: 0, memory: -1, want: -1},
		{memswap: 300, memory: 200, want: 100},
		{memswap: 300, memory: 300, want: 0},
		{memswap: 200, memory: 300, wantErr: true},
		{memswap: 300, memory: 0, wantErr: true},
		{memswap: 300, memory: -300, wantErr: true},
	}
	for _, c := range cases {
		got, err := ConvertMemorySwapToCgroupV2Value(c.memswap, c.memory)
		if (err != nil) != c.wantErr {
			t.Errorf("ConvertMemorySwapToCgroupV2Value(%d, %d) error = %v, wantErr %v",
				c.memswap, c.memory, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("ConvertMemorySwapToCgroupV2Value(%d, %d) = %d, want %d",
				c.memswap, c.memory, got, c.want)
		}
	}
}

func TestConvertBlkIOToIOWeightValue(t *testing.T) {
	cases := map[uint16]uint64{
		0:    0,
		10:   1,
		100:  910,
		1000: 10000,
	}
	for w, want := range cases {
		if got := ConvertBlkIOToIOWeightValue(w); got != want {
			t.Errorf("ConvertBlkIOToIOWeightValue(%d) = %d, want %d", w, got, want)
		}
	}
}
