package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMipLevels(t *testing.T) {
	cases := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{256, 256, 9},
		{300, 200, 9},
		{512, 3, 10},
		{1023, 1, 10},
		{1024, 1024, 11},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MipLevels(c.w, c.h), "MipLevels(%d, %d)", c.w, c.h)
	}
}

func TestMipSize(t *testing.T) {
	assert.Equal(t, uint32(128), MipSize(256, 1))
	assert.Equal(t, uint32(1), MipSize(3, 5))
}

func TestClampAndAlign(t *testing.T) {
	assert.Equal(t, uint32(4), Clamp[uint32](9, 1, 4))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, uint32(256), AlignUp[uint32](12, 256))
	assert.Equal(t, uint32(512), AlignUp[uint32](257, 256))
	assert.Equal(t, uint32(256), AlignUp[uint32](256, 256))
}
