// Package cpu implements the host reference backend for the dark-field
// suppression stage. It mirrors the GPU kernel bit-for-bit and is used on
// machines without an accelerator and by the correctness tests.
package cpu

import (
	"fmt"
	"unsafe"

	"github.com/voxelforge/darkfield/internal/parallel"
	"github.com/voxelforge/darkfield/volume"
)

// Backend executes the thresholding kernel on the host, parallelized
// across volume slices.
type Backend struct {
	cfg parallel.Config
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{cfg: parallel.DefaultConfig()}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// slabKernel processes voxels [start, end) of a flat volume:
// widen, compare magnitude against the threshold, zero or pass,
// saturating narrow to the output type.
type slabKernel func(src, dst []byte, start, end int, threshold volume.WorkType)

// Threshold runs the dark-field kernel over the whole volume and
// returns a fresh host-resident container. Device-resident inputs are
// read back through their bound queue, which drains pending work first.
func (b *Backend) Threshold(in *volume.Container, geom volume.Geometry, threshold float64, outType volume.SampleType) (*volume.Container, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if in.Len() != geom.NumVoxels() {
		return nil, fmt.Errorf("cpu: container holds %d samples, geometry %v needs %d", in.Len(), geom, geom.NumVoxels())
	}

	kernel := kernelFor(in.SampleType(), outType)
	if kernel == nil {
		return nil, fmt.Errorf("cpu: unsupported sample type pair %s -> %s", in.SampleType(), outType)
	}

	src, err := hostBytes(in)
	if err != nil {
		return nil, err
	}

	result, err := volume.NewHost(outType, in.Len())
	if err != nil {
		return nil, err
	}

	thr := volume.WorkType(threshold)
	slab := int(geom.Width) * int(geom.Height)
	parallel.For(int(geom.Depth), func(z int) {
		kernel(src, result.Bytes(), z*slab, (z+1)*slab, thr)
	}, b.cfg)

	return result, nil
}

// hostBytes returns a host view of the container's samples, reading
// back from the device when the container is device-only.
func hostBytes(in *volume.Container) ([]byte, error) {
	if in.HostAccessible() {
		return in.Bytes(), nil
	}
	dev := in.Device()
	data, err := dev.Queue.ReadBuffer(dev.Ptr, uint64(in.ByteSize()))
	if err != nil {
		return nil, fmt.Errorf("cpu: device read-back failed: %w", err)
	}
	return data[:in.ByteSize()], nil
}

// kernelFor selects the slab kernel for a sample type pair. The nine
// instantiations are fixed at stage construction; no per-voxel type
// dispatch happens inside the kernels.
func kernelFor(in, out volume.SampleType) slabKernel {
	switch in {
	case volume.Uint8:
		return kernelTo[uint8](out)
	case volume.Int16:
		return kernelTo[int16](out)
	case volume.Float32:
		return kernelTo[float32](out)
	default:
		return nil
	}
}

func kernelTo[In volume.Sample](out volume.SampleType) slabKernel {
	switch out {
	case volume.Uint8:
		return slab[In, uint8]
	case volume.Int16:
		return slab[In, int16]
	case volume.Float32:
		return slab[In, float32]
	default:
		return nil
	}
}

func slab[In, Out volume.Sample](src, dst []byte, start, end int, threshold volume.WorkType) {
	s := viewAs[In](src)
	d := viewAs[Out](dst)
	for i := start; i < end; i++ {
		v := volume.Widen(s[i])
		if absWork(v) >= threshold {
			d[i] = volume.Saturate[Out](v)
		} else {
			d[i] = 0
		}
	}
}

func absWork(v volume.WorkType) volume.WorkType {
	if v < 0 {
		return -v
	}
	return v
}

func viewAs[T volume.Sample](b []byte) []T {
	var dummy T
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/int(unsafe.Sizeof(dummy)))
}
