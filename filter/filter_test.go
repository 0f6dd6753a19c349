package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/darkfield/internal/cpu"
	"github.com/voxelforge/darkfield/volume"
)

func TestNewStageValidation(t *testing.T) {
	b := cpu.New()

	_, err := NewStage(nil, volume.Uint8, volume.Uint8)
	assert.Error(t, err)

	_, err = NewStage(b, volume.SampleType(9), volume.Uint8)
	assert.Error(t, err)

	_, err = NewStage(b, volume.Uint8, volume.SampleType(9))
	assert.Error(t, err)

	s, err := NewStage(b, volume.Int16, volume.Float32)
	require.NoError(t, err)
	assert.Equal(t, volume.Int16, s.InputType())
	assert.Equal(t, volume.Float32, s.OutputType())
}

func TestStagePorts(t *testing.T) {
	s, err := NewStage(cpu.New(), volume.Uint8, volume.Uint8)
	require.NoError(t, err)

	assert.Equal(t, 1, s.NumInputs())
	assert.Equal(t, 1, s.NumOutputs())
}

func TestProcessDarkFieldScenario(t *testing.T) {
	s, err := NewStage(cpu.New(), volume.Int16, volume.Uint8)
	require.NoError(t, err)

	in, err := volume.FromSlice([]int16{50, -5})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 2, Height: 1, Depth: 1}
	out, err := s.Process(in, geom, 10.0)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []uint8{50, 0}, out.AsUint8())
	assert.Equal(t, geom.NumVoxels(), out.Len())
	// Fresh output, input untouched.
	assert.Equal(t, []int16{50, -5}, in.AsInt16())
}

func TestProcessValidation(t *testing.T) {
	s, err := NewStage(cpu.New(), volume.Float32, volume.Float32)
	require.NoError(t, err)

	geom := volume.Geometry{Width: 2, Height: 1, Depth: 1}

	_, err = s.Process(nil, geom, 0)
	assert.Error(t, err)

	in, err := volume.FromSlice([]float32{1, 2})
	require.NoError(t, err)
	defer in.Release()

	_, err = s.Process(in, volume.Geometry{}, 0)
	assert.Error(t, err)

	_, err = s.Process(in, volume.Geometry{Width: 3, Height: 1, Depth: 1}, 0)
	assert.Error(t, err)

	_, err = s.Process(in, geom, math.NaN())
	assert.Error(t, err)

	_, err = s.Process(in, geom, math.Inf(1))
	assert.Error(t, err)

	wrong, err := volume.FromSlice([]int16{1, 2})
	require.NoError(t, err)
	defer wrong.Release()

	_, err = s.Process(wrong, geom, 0)
	assert.Error(t, err)
}

func TestRunGenericSurface(t *testing.T) {
	b := cpu.New()
	geom := volume.Geometry{Width: 2, Height: 1, Depth: 1}

	out, err := Run[int16, uint8](b, []int16{50, -5}, geom, 10.0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{50, 0}, out)

	f, err := Run[float32, uint8](b, []float32{-300}, volume.Geometry{Width: 1, Height: 1, Depth: 1}, 100.0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255}, f)

	same, err := Run[float32, float32](b, []float32{1, -2}, geom, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2}, same)
}

func TestRunThresholdZeroTwiceIsIdempotent(t *testing.T) {
	b := cpu.New()
	geom := volume.Geometry{Width: 4, Height: 1, Depth: 1}
	data := []float32{-3.5, 0, 1.25, 300}

	once, err := Run[float32, uint8](b, data, geom, 0)
	require.NoError(t, err)

	twice, err := Run[uint8, uint8](b, once, geom, 0)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}
