package volume

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Residency tags where a container's samples currently live.
type Residency int

// Supported residencies.
const (
	// ResidencyHost means the samples exist only in host memory.
	ResidencyHost Residency = iota
	// ResidencyDevice means the samples exist only in device memory.
	ResidencyDevice
	// ResidencyBoth means host and device hold the same logical content.
	ResidencyBoth
)

// String returns a human-readable residency name.
func (r Residency) String() string {
	switch r {
	case ResidencyHost:
		return "host"
	case ResidencyDevice:
		return "device"
	case ResidencyBoth:
		return "both"
	default:
		return "unknown"
	}
}

// DeviceQueue is the execution-queue abstraction a device-resident
// container is bound to. It is implemented by the GPU execution layer;
// keeping it an interface here avoids a dependency cycle and lets the
// container release device memory without knowing the binding.
//
// Work enqueued on one queue executes in enqueue order. A caller that
// wants to consume results host-side or on another queue must Drain
// first; the processing stages themselves never do.
type DeviceQueue interface {
	// ReadBuffer copies a device buffer back to host memory. It drains
	// the queue up to the copy, so the returned bytes reflect all work
	// enqueued before the call.
	ReadBuffer(ptr unsafe.Pointer, size uint64) ([]byte, error)

	// ReleaseBuffer frees a device buffer when its last owner is gone.
	ReleaseBuffer(ptr unsafe.Pointer)

	// Drain blocks until all work enqueued so far has completed.
	Drain() error
}

// DeviceData references a device-resident buffer and the queue it is
// bound to. Ptr is an opaque handle owned by the execution layer.
type DeviceData struct {
	Ptr   unsafe.Pointer
	Size  uint64
	Queue DeviceQueue
}

// Container owns a flat buffer of voxel samples of one sample type.
// It is reference counted: Retain before handing it to another owner,
// Release when done. Apart from the residency bookkeeping done by the
// explicit migration operations, a container is immutable once filled -
// stages read inputs and allocate fresh outputs.
type Container struct {
	stype     SampleType
	count     int
	residency Residency
	host      []byte
	device    *DeviceData
	refs      atomic.Int32
}

// NewHost creates a host-resident container with zeroed storage for
// count samples of type st.
func NewHost(st SampleType, count int) (*Container, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("volume: invalid sample type %d", int(st))
	}
	if count <= 0 {
		return nil, fmt.Errorf("volume: invalid element count %d", count)
	}
	c := &Container{
		stype:     st,
		count:     count,
		residency: ResidencyHost,
		host:      make([]byte, count*st.Size()),
	}
	c.refs.Store(1)
	return c, nil
}

// FromSlice creates a host-resident container holding a copy of data.
func FromSlice[T Sample](data []T) (*Container, error) {
	c, err := NewHost(SampleTypeOf[T](), len(data))
	if err != nil {
		return nil, err
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(c.host))
	copy(c.host, src)
	return c, nil
}

// NewDeviceResident wraps a freshly allocated device buffer in a
// container. Used by the execution layer for outputs and migrations;
// the container takes ownership of the buffer.
func NewDeviceResident(st SampleType, count int, dev *DeviceData) (*Container, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("volume: invalid sample type %d", int(st))
	}
	if count <= 0 {
		return nil, fmt.Errorf("volume: invalid element count %d", count)
	}
	if dev == nil || dev.Ptr == nil || dev.Queue == nil {
		return nil, fmt.Errorf("volume: device-resident container needs a bound device buffer")
	}
	c := &Container{
		stype:     st,
		count:     count,
		residency: ResidencyDevice,
		device:    dev,
	}
	c.refs.Store(1)
	return c, nil
}

// WithDevice returns a new container that shares this container's host
// bytes and additionally owns the given device buffer. This is the
// result shape of a host->device migration: same logical content,
// dual residency, fresh handle. The receiver is left untouched.
func (c *Container) WithDevice(dev *DeviceData) (*Container, error) {
	if c.host == nil {
		return nil, fmt.Errorf("volume: WithDevice requires host-resident content")
	}
	if dev == nil || dev.Ptr == nil || dev.Queue == nil {
		return nil, fmt.Errorf("volume: WithDevice needs a bound device buffer")
	}
	n := &Container{
		stype:     c.stype,
		count:     c.count,
		residency: ResidencyBoth,
		host:      c.host, // shared read-only by contract
		device:    dev,
	}
	n.refs.Store(1)
	return n, nil
}

// SampleType returns the container's sample type.
func (c *Container) SampleType() SampleType {
	return c.stype
}

// Len returns the number of samples.
func (c *Container) Len() int {
	return c.count
}

// ByteSize returns the total storage size in bytes.
func (c *Container) ByteSize() int {
	return c.count * c.stype.Size()
}

// Residency returns where the samples currently live.
func (c *Container) Residency() Residency {
	return c.residency
}

// HostAccessible reports whether the samples can be read from host code.
func (c *Container) HostAccessible() bool {
	return c.residency == ResidencyHost || c.residency == ResidencyBoth
}

// DeviceAccessible reports whether the samples are usable by a kernel
// without a migration.
func (c *Container) DeviceAccessible() bool {
	return c.residency == ResidencyDevice || c.residency == ResidencyBoth
}

// Device returns the device binding, or nil for host-only containers.
func (c *Container) Device() *DeviceData {
	return c.device
}

// Bytes returns the raw host byte slice.
// Panics if the container is not host accessible.
func (c *Container) Bytes() []byte {
	if c.host == nil {
		panic("volume: container is not host resident")
	}
	return c.host
}

// AsUint8 interprets the host data as []uint8.
// Panics if the sample type is not Uint8 or the data is device-only.
func (c *Container) AsUint8() []uint8 {
	if c.stype != Uint8 {
		panic(fmt.Sprintf("volume: sample type is %s, not uint8", c.stype))
	}
	return c.Bytes()
}

// AsInt16 interprets the host data as []int16.
// Panics if the sample type is not Int16 or the data is device-only.
func (c *Container) AsInt16() []int16 {
	if c.stype != Int16 {
		panic(fmt.Sprintf("volume: sample type is %s, not int16", c.stype))
	}
	data := c.Bytes()
	return unsafe.Slice((*int16)(unsafe.Pointer(&data[0])), c.count)
}

// AsFloat32 interprets the host data as []float32.
// Panics if the sample type is not Float32 or the data is device-only.
func (c *Container) AsFloat32() []float32 {
	if c.stype != Float32 {
		panic(fmt.Sprintf("volume: sample type is %s, not float32", c.stype))
	}
	data := c.Bytes()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), c.count)
}

// Retain increments the reference count and returns the container.
func (c *Container) Retain() *Container {
	c.refs.Add(1)
	return c
}

// Release decrements the reference count. When the last owner releases,
// host storage is dropped and the device buffer, if any, is returned to
// its queue.
func (c *Container) Release() {
	if c.refs.Add(-1) != 0 {
		return
	}
	c.host = nil
	if c.device != nil {
		c.device.Queue.ReleaseBuffer(c.device.Ptr)
		c.device = nil
	}
}

// Refs returns the current reference count. Intended for tests and
// leak diagnostics.
func (c *Container) Refs() int {
	return int(c.refs.Load())
}
