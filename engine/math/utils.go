package math

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// MaxOf returns the largest of its arguments.
func MaxOf[T constraints.Ordered](v T, rest ...T) T {
	for _, r := range rest {
		if r > v {
			v = r
		}
	}
	return v
}

// Log2Floor returns floor(log2(v)) for v > 0 and 0 for v == 0.
func Log2Floor(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	return uint32(bits.Len32(v) - 1)
}

// MipLevels returns the length of a full mip chain for a width x height
// image: floor(log2(max(width, height))) + 1.
func MipLevels(width, height uint32) uint32 {
	return Log2Floor(MaxOf(width, height, 1)) + 1
}

// MipSize returns the extent of a dimension at the given mip level, never below 1.
func MipSize(size, level uint32) uint32 {
	return MaxOf(size>>level, 1)
}

// AlignUp rounds v up to the next multiple of alignment (a power of two).
func AlignUp[T constraints.Unsigned](v, alignment T) T {
	return (v + alignment - 1) &^ (alignment - 1)
}
