package filter

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/voxelforge/darkfield/volume"
)

// Backend executes the thresholding kernel for one sample type pair.
// Implementations live in internal/gpu (asynchronous, device memory)
// and internal/cpu (synchronous host reference).
type Backend interface {
	// Threshold reads every voxel of in, zeroes those with magnitude
	// below threshold, and writes the survivors through a saturating
	// cast into a fresh container of sample type out. The input is
	// never mutated. The returned container may be device resident;
	// its contents are defined once its bound queue has drained.
	Threshold(in *volume.Container, geom volume.Geometry, threshold float64, out volume.SampleType) (*volume.Container, error)
}

// Stage is the dark-field suppression node. The input and output
// sample types are fixed at construction so the backend resolves its
// kernel instantiation once, never per voxel.
type Stage struct {
	backend Backend
	inType  volume.SampleType
	outType volume.SampleType
}

// NewStage creates a stage bound to a backend and a sample type pair.
func NewStage(b Backend, in, out volume.SampleType) (*Stage, error) {
	if b == nil {
		return nil, fmt.Errorf("filter: nil backend")
	}
	if !in.Valid() {
		return nil, fmt.Errorf("filter: invalid input sample type %d", int(in))
	}
	if !out.Valid() {
		return nil, fmt.Errorf("filter: invalid output sample type %d", int(out))
	}
	return &Stage{backend: b, inType: in, outType: out}, nil
}

// InputType returns the stage's input sample type.
func (s *Stage) InputType() volume.SampleType {
	return s.inType
}

// OutputType returns the stage's output sample type.
func (s *Stage) OutputType() volume.SampleType {
	return s.outType
}

// NumInputs returns the number of input ports the node exposes.
func (s *Stage) NumInputs() int {
	return 1
}

// NumOutputs returns the number of output ports the node exposes.
func (s *Stage) NumOutputs() int {
	return 1
}

// Process runs the filter over one volume and returns a fresh output
// container with the same geometry. It does not wait for kernel
// completion; only launch acceptance is checked synchronously.
func (s *Stage) Process(in *volume.Container, geom volume.Geometry, threshold float64) (*volume.Container, error) {
	if in == nil {
		return nil, fmt.Errorf("filter: nil input container")
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if in.Len() != geom.NumVoxels() {
		return nil, fmt.Errorf("filter: container holds %d samples, geometry %v needs %d",
			in.Len(), geom, geom.NumVoxels())
	}
	if in.SampleType() != s.inType {
		return nil, fmt.Errorf("filter: stage expects %s input, got %s", s.inType, in.SampleType())
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("filter: threshold must be finite, got %v", threshold)
	}

	return s.backend.Threshold(in, geom, threshold, s.outType)
}

// Run is the generic convenience surface over the stage: it wraps a
// sample slice in a container, processes it, drains the result and
// returns the output samples. The In/Out type parameters select one of
// the nine kernel instantiations at the call site.
func Run[In, Out volume.Sample](b Backend, data []In, geom volume.Geometry, threshold float64) ([]Out, error) {
	in, err := volume.FromSlice(data)
	if err != nil {
		return nil, err
	}
	defer in.Release()

	stage, err := NewStage(b, volume.SampleTypeOf[In](), volume.SampleTypeOf[Out]())
	if err != nil {
		return nil, err
	}

	out, err := stage.Process(in, geom, threshold)
	if err != nil {
		return nil, err
	}
	defer out.Release()

	raw, err := realize(out)
	if err != nil {
		return nil, err
	}

	result := make([]Out, out.Len())
	dst := sliceBytes(result)
	copy(dst, raw)
	return result, nil
}

// realize returns the output samples as host bytes, draining the bound
// queue when the container is device resident.
func realize(c *volume.Container) ([]byte, error) {
	if c.HostAccessible() {
		return c.Bytes(), nil
	}
	dev := c.Device()
	data, err := dev.Queue.ReadBuffer(dev.Ptr, uint64(c.ByteSize()))
	if err != nil {
		return nil, fmt.Errorf("filter: result read-back failed: %w", err)
	}
	return data[:c.ByteSize()], nil
}

func sliceBytes[T volume.Sample](s []T) []byte {
	var dummy T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(dummy)))
}
