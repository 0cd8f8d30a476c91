package certid

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[A-Z0-9]{12}$`)

func TestRandomSource_ProducesWellFormedDistinctIDs(t *testing.T) {
	src := NewRandomSource()
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		id, err := src.Next()
		require.NoError(t, err)
		assert.Regexp(t, idPattern, id)
		assert.True(t, Valid(id))
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, 1000)
}

func TestRandomSource_SkipsBiasedBytes(t *testing.T) {
	// 255 is above the unbiased range and must be discarded; 0 maps to 'A', 35 to '9'.
	data := bytes.Repeat([]byte{255, 0, 35}, 16)
	src := &RandomSource{reader: bytes.NewReader(data)}

	id, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "A9A9A9A9A9A9", id)
}

func TestRandomSource_ShortReader(t *testing.T) {
	src := &RandomSource{reader: bytes.NewReader([]byte{1, 2, 3})}

	_, err := src.Next()
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"ABCDEF123456", true},
		{"abcdef123456", false},
		{"ABCDEF12345", false},
		{"ABCDEF1234567", false},
		{"", false},
		{"ABCDEF-23456", false},
		{"' OR 1=1 --", false},
		{"ÄBCDEF123456", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.id), tt.id)
	}
}
