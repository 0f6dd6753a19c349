package volume

// Sample is a constraint for the supported voxel sample types.
// Ultrasound volumes arrive as 8-bit envelope data, 16-bit signed RF
// samples, or 32-bit floating point.
type Sample interface {
	~uint8 | ~int16 | ~float32
}

// SampleType represents runtime type information for containers.
type SampleType int

// Supported sample types.
const (
	Uint8 SampleType = iota
	Int16
	Float32
)

// Size returns the byte size of one sample.
func (st SampleType) Size() int {
	switch st {
	case Uint8:
		return 1
	case Int16:
		return 2
	case Float32:
		return 4
	default:
		panic("unknown sample type")
	}
}

// String returns a human-readable name for the sample type.
func (st SampleType) String() string {
	switch st {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// Valid reports whether st is one of the supported sample types.
func (st SampleType) Valid() bool {
	return st == Uint8 || st == Int16 || st == Float32
}

// SampleTypeOf infers the SampleType for a generic sample type T.
func SampleTypeOf[T Sample]() SampleType {
	var dummy T
	switch any(dummy).(type) {
	case uint8:
		return Uint8
	case int16:
		return Int16
	case float32:
		return Float32
	default:
		panic("unsupported sample type")
	}
}
