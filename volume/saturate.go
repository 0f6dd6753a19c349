package volume

import "math"

// WorkType is the internal arithmetic precision of the processing
// kernels. float32 represents every supported sample type exactly
// (uint8 and int16 are well inside its 24-bit mantissa).
//
// Thresholds arrive from callers as float64 and are narrowed once,
// before launch, never per voxel.
type WorkType = float32

// Widen converts a sample to WorkType. Lossless for all supported
// sample types.
func Widen[T Sample](v T) WorkType {
	return WorkType(v)
}

// Saturate narrows a WorkType value to the output sample type T,
// clamping to the representable range instead of wrapping.
//
// Unsigned targets clamp the magnitude of the value (a negative sample
// that passed a magnitude threshold keeps its magnitude rather than
// collapsing to zero), signed targets clamp two-sided, float targets
// pass through unchanged. Integer targets round to nearest-even so the
// host path agrees bit-for-bit with WGSL round(). NaN maps to zero.
func Saturate[T Sample](v WorkType) T {
	var dummy T
	switch any(dummy).(type) {
	case uint8:
		return T(saturateUint8(v))
	case int16:
		return T(saturateInt16(v))
	case float32:
		return T(v)
	default:
		panic("unsupported sample type")
	}
}

func saturateUint8(v WorkType) uint8 {
	f := math.Abs(float64(v))
	if math.IsNaN(f) {
		return 0
	}
	f = math.RoundToEven(f)
	if f >= math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(f)
}

func saturateInt16(v WorkType) int16 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	f = math.RoundToEven(f)
	if f <= math.MinInt16 {
		return math.MinInt16
	}
	if f >= math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(f)
}
