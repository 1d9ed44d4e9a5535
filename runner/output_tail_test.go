package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferKeepsMostRecentBytes(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte("abcdef"))
	assert.Equal(t, "abcdef", b.String())

	_, _ = b.Write([]byte("ghijkl"))
	assert.Equal(t, int64(12), b.TotalBytes())
	assert.True(t, strings.HasPrefix(b.String(), "...(truncated)\n"))
	assert.True(t, strings.HasSuffix(b.String(), "efghijkl"))
}

func TestTailBufferDefaultSize(t *testing.T) {
	b := newTailBuffer(0)
	assert.Equal(t, defaultOutputTailBytes, b.maxBytes)
}
