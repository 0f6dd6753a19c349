package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleTypeSize(t *testing.T) {
	assert.Equal(t, 1, Uint8.Size())
	assert.Equal(t, 2, Int16.Size())
	assert.Equal(t, 4, Float32.Size())
}

func TestSampleTypeString(t *testing.T) {
	assert.Equal(t, "uint8", Uint8.String())
	assert.Equal(t, "int16", Int16.String())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "unknown", SampleType(99).String())
}

func TestSampleTypeValid(t *testing.T) {
	assert.True(t, Uint8.Valid())
	assert.True(t, Int16.Valid())
	assert.True(t, Float32.Valid())
	assert.False(t, SampleType(-1).Valid())
	assert.False(t, SampleType(3).Valid())
}

func TestSampleTypeOf(t *testing.T) {
	assert.Equal(t, Uint8, SampleTypeOf[uint8]())
	assert.Equal(t, Int16, SampleTypeOf[int16]())
	assert.Equal(t, Float32, SampleTypeOf[float32]())
}
