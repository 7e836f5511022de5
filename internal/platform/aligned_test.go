package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignedBuffer(t *testing.T) {
	for _, align := range []int{1, 512, 4096} {
		buf := AlignedBuffer(8192, align)
		assert.Len(t, buf, 8192)
		assert.Equal(t, 8192, cap(buf))
		assert.True(t, IsAligned(buf, align), "alignment %d", align)
	}
}

func TestIsAligned(t *testing.T) {
	buf := AlignedBuffer(1024, 512)
	assert.True(t, IsAligned(buf, 512))
	assert.False(t, IsAligned(buf[1:], 512))
	assert.True(t, IsAligned(nil, 512))
}
