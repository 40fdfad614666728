package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeEnd(t *testing.T) {
	closed := NewRange(10, 20)
	assert.Equal(t, int64(20), closed.End())

	open := OpenRange(10)
	assert.Equal(t, int64(math.MaxInt64), open.End())
}

func TestRangeIntersect(t *testing.T) {
	tests := []struct {
		name     string
		r        Range
		bound    Range
		expected Range
		ok       bool
	}{
		{"overlap", NewRange(10, 20), NewRange(15, 30), NewRange(15, 20), true},
		{"contained", NewRange(10, 20), NewRange(0, 100), NewRange(10, 20), true},
		{"disjoint", NewRange(10, 20), NewRange(21, 30), Range{}, false},
		{"touching", NewRange(10, 20), NewRange(20, 30), NewRange(20, 20), true},
		{"open range bounded", OpenRange(10), NewRange(0, 50), NewRange(10, 50), true},
		{"open bound", NewRange(10, 20), OpenRange(15), NewRange(15, 20), true},
		{"both open", OpenRange(10), OpenRange(5), OpenRange(10), true},
		{"open range below bound", OpenRange(100), NewRange(0, 50), Range{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.r.Intersect(tt.bound)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.expected.From, got.From)
				assert.Equal(t, tt.expected.End(), got.End())
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	r := NewRange(10, 20)
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(20))
	assert.False(t, r.Contains(9))
	assert.False(t, r.Contains(21))
	assert.True(t, OpenRange(10).Contains(1_000_000_000))
}
