package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/darkfield/volume"
)

func TestThresholdInt16ToUint8(t *testing.T) {
	// 50 passes (|50| >= 10) and fits the output range; -5 is zeroed.
	in, err := volume.FromSlice([]int16{50, -5})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 2, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 10.0, volume.Uint8)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, volume.Uint8, out.SampleType())
	assert.Equal(t, []uint8{50, 0}, out.AsUint8())
}

func TestThresholdNegativeFloatSaturatesUnsigned(t *testing.T) {
	// |-300| >= 100 passes, then clamps to the unsigned maximum.
	in, err := volume.FromSlice([]float32{-300})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 1, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 100.0, volume.Uint8)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []uint8{255}, out.AsUint8())
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	in, err := volume.FromSlice([]float32{10, 9.999, -10})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 3, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 10.0, volume.Float32)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float32{10, 0, -10}, out.AsFloat32())
}

func TestThresholdZeroIsPassThrough(t *testing.T) {
	data := []float32{-3.5, 0, 1.25, 1e6}
	in, err := volume.FromSlice(data)
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 4, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 0, volume.Float32)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, data, out.AsFloat32())
	// Input is untouched.
	assert.Equal(t, data, in.AsFloat32())
}

func TestThresholdSaturatesInt16(t *testing.T) {
	in, err := volume.FromSlice([]float32{1e6, -1e6, 123.4})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 3, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 1.0, volume.Int16)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int16{math.MaxInt16, math.MinInt16, 123}, out.AsInt16())
}

func TestThresholdUint8Input(t *testing.T) {
	// abs() is a no-op for unsigned samples: everything below the
	// threshold is zeroed, everything at or above passes.
	in, err := volume.FromSlice([]uint8{0, 9, 10, 200})
	require.NoError(t, err)
	defer in.Release()

	geom := volume.Geometry{Width: 4, Height: 1, Depth: 1}
	out, err := New().Threshold(in, geom, 10.0, volume.Float32)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float32{0, 0, 10, 200}, out.AsFloat32())
}

func TestThresholdAllNinePairs(t *testing.T) {
	geom := volume.Geometry{Width: 2, Height: 2, Depth: 1}

	containers := map[volume.SampleType]*volume.Container{}
	var err error
	containers[volume.Uint8], err = volume.FromSlice([]uint8{0, 5, 50, 200})
	require.NoError(t, err)
	containers[volume.Int16], err = volume.FromSlice([]int16{0, -5, 50, -200})
	require.NoError(t, err)
	containers[volume.Float32], err = volume.FromSlice([]float32{0, -5, 50, -200})
	require.NoError(t, err)
	defer func() {
		for _, c := range containers {
			c.Release()
		}
	}()

	b := New()
	for inType, in := range containers {
		for _, outType := range []volume.SampleType{volume.Uint8, volume.Int16, volume.Float32} {
			out, err := b.Threshold(in, geom, 10.0, outType)
			require.NoError(t, err, "%s -> %s", inType, outType)

			assert.Equal(t, outType, out.SampleType())
			assert.Equal(t, in.Len(), out.Len())
			out.Release()
		}
	}
}

func TestThresholdLargeVolumeParallel(t *testing.T) {
	geom := volume.Geometry{Width: 17, Height: 9, Depth: 33}
	n := geom.NumVoxels()

	data := make([]int16, n)
	for i := range data {
		data[i] = int16(i%97 - 48)
	}
	in, err := volume.FromSlice(data)
	require.NoError(t, err)
	defer in.Release()

	out, err := New().Threshold(in, geom, 20.0, volume.Int16)
	require.NoError(t, err)
	defer out.Release()

	got := out.AsInt16()
	for i, v := range data {
		want := int16(0)
		if v >= 20 || v <= -20 {
			want = v
		}
		require.Equal(t, want, got[i], "voxel %d", i)
	}
}

func TestThresholdCountMismatch(t *testing.T) {
	in, err := volume.FromSlice([]uint8{1, 2, 3})
	require.NoError(t, err)
	defer in.Release()

	_, err = New().Threshold(in, volume.Geometry{Width: 2, Height: 2, Depth: 1}, 0, volume.Uint8)
	assert.Error(t, err)
}

func TestThresholdInvalidGeometry(t *testing.T) {
	in, err := volume.FromSlice([]uint8{1})
	require.NoError(t, err)
	defer in.Release()

	_, err = New().Threshold(in, volume.Geometry{}, 0, volume.Uint8)
	assert.Error(t, err)
}

func TestThresholdUnsupportedOutputType(t *testing.T) {
	in, err := volume.FromSlice([]uint8{1})
	require.NoError(t, err)
	defer in.Release()

	_, err = New().Threshold(in, volume.Geometry{Width: 1, Height: 1, Depth: 1}, 0, volume.SampleType(9))
	assert.Error(t, err)
}
