package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsReallocOnlyWhenRequestOutgrowsCapacity(t *testing.T) {
	assert.True(t, NeedsRealloc(0, 1))
	assert.True(t, NeedsRealloc(256, 257))

	// Capacity never shrinks: a smaller or equal request keeps the buffer.
	assert.False(t, NeedsRealloc(256, 256))
	assert.False(t, NeedsRealloc(256, 64))
	assert.False(t, NeedsRealloc(256, 0))
}
