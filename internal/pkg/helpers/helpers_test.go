package helpers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateOffsetLimit(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantOffset uint64
		wantLimit  int
	}{
		{"first page", 1, 10, 0, 10},
		{"third page", 3, 20, 40, 20},
		{"zero page falls back to first", 0, 5, 0, 5},
		{"oversized page size falls back to default", 2, 1000, 10, DefaultPageSize},
		{"huge page does not overflow", math.MaxInt64 / 5, 10, uint64(math.MaxInt64/10*10 - 10), 10},
		{"largest page", math.MaxInt64, 1, uint64(math.MaxInt64 - 1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := CalculateOffsetLimit(tt.page, tt.size)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestNewPaginationInfo(t *testing.T) {
	info := NewPaginationInfo(21, 2, 10)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 2, info.CurrentPage)
	assert.Equal(t, int64(21), info.TotalItems)

	empty := NewPaginationInfo(0, 1, 10)
	assert.Equal(t, 1, empty.TotalPages)
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 4.2, RoundTo(21.0/5.0, 1))
	assert.Equal(t, 3.7, RoundTo(11.0/3.0, 1))
	assert.Equal(t, 4.3, RoundTo(4.25, 1))
}
