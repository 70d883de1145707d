package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange(" 200-202 ")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 200, Max: 202}, r)
	assert.Equal(t, "200-202", r.String())

	r, err = ParseRange("204")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 204, Max: 204}, r)

	for _, bad := range []string{"", "abc", "200-x", "300-200"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestClassifier_PendingNeverPasses(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		code    int
		pass    bool
		pending bool
	}{
		{200, true, false},
		{201, true, false},
		{202, false, true},
		{203, false, false},
		{304, true, false},
		{404, false, false},
		{500, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.pass, c.IsPass(tt.code), "pass %d", tt.code)
		assert.Equal(t, tt.pending, c.IsPending(tt.code), "pending %d", tt.code)
	}

	wide := Classifier{Pass: Range{Min: 200, Max: 299}, Pending: 299}
	assert.True(t, wide.IsPass(202))
	assert.False(t, wide.IsPass(299))
	assert.False(t, wide.IsPass(304), "no not-modified code configured")
}
