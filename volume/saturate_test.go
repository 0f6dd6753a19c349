package volume

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidenLossless(t *testing.T) {
	// Every uint8 and int16 value survives the round trip exactly.
	for v := 0; v <= math.MaxUint8; v++ {
		assert.Equal(t, uint8(v), uint8(Widen(uint8(v))))
	}
	for _, v := range []int16{math.MinInt16, -1, 0, 1, 255, math.MaxInt16} {
		assert.Equal(t, v, int16(Widen(v)))
	}
}

func TestSaturateUint8(t *testing.T) {
	assert.Equal(t, uint8(50), Saturate[uint8](50))
	assert.Equal(t, uint8(0), Saturate[uint8](0))
	assert.Equal(t, uint8(255), Saturate[uint8](255))

	// Out-of-range values clamp to the maximum instead of wrapping.
	assert.Equal(t, uint8(255), Saturate[uint8](1000))

	// Unsigned targets keep the magnitude of negative values.
	assert.Equal(t, uint8(255), Saturate[uint8](-300))
	assert.Equal(t, uint8(5), Saturate[uint8](-5))

	assert.Equal(t, uint8(0), Saturate[uint8](WorkType(math.NaN())))
}

func TestSaturateInt16(t *testing.T) {
	assert.Equal(t, int16(-300), Saturate[int16](-300))
	assert.Equal(t, int16(math.MaxInt16), Saturate[int16](1e6))
	assert.Equal(t, int16(math.MinInt16), Saturate[int16](-1e6))
	assert.Equal(t, int16(0), Saturate[int16](WorkType(math.NaN())))
}

func TestSaturateFloat32Passthrough(t *testing.T) {
	for _, v := range []WorkType{-1e30, -300, -0.25, 0, 0.25, 1000, 1e30} {
		assert.Equal(t, float32(v), Saturate[float32](v))
	}
}

func TestSaturateRoundsToNearestEven(t *testing.T) {
	// Matches WGSL round() semantics so host and device agree.
	assert.Equal(t, uint8(2), Saturate[uint8](2.5))
	assert.Equal(t, uint8(4), Saturate[uint8](3.5))
	assert.Equal(t, int16(-2), Saturate[int16](-2.5))
}
