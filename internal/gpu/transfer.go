package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/voxelforge/darkfield/volume"
)

// alignUp rounds size up to the next multiple of align.
// WebGPU buffer sizes and copy sizes must be multiples of 4.
func alignUp(size, align uint64) uint64 {
	return (size + align - 1) / align * align
}

// createStorageBuffer creates a storage buffer initialized with data.
// The buffer is padded to 4-byte alignment; padding bytes are zero.
func (d *Device) createStorageBuffer(data []byte) (*wgpu.Buffer, uint64) {
	size := alignUp(uint64(len(data)), 4)

	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	ptr := buffer.GetMappedRange(0, size)
	dst := unsafe.Slice((*byte)(ptr), size)
	copy(dst, data)
	for i := len(data); i < int(size); i++ {
		dst[i] = 0
	}
	buffer.Unmap()

	d.trackBufferAllocation(size)
	return buffer, size
}

// allocOutputBuffer creates a fresh storage buffer for kernel output.
// It is never drawn from the pool: packed outputs are written with
// atomicOr and depend on WebGPU zero-initializing new allocations.
func (d *Device) allocOutputBuffer(st volume.SampleType, count int) (*wgpu.Buffer, uint64) {
	size := alignUp(uint64(count)*uint64(st.Size()), 4)

	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:  size,
	})

	d.trackBufferAllocation(size)
	return buffer, size
}

// createUniformBuffer creates a uniform buffer initialized with data,
// padded to the 16-byte uniform alignment.
func (d *Device) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := alignUp(uint64(len(data)), 16)

	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	ptr := buffer.GetMappedRange(0, size)
	dst := unsafe.Slice((*byte)(ptr), size)
	copy(dst, data)
	for i := len(data); i < int(size); i++ {
		dst[i] = 0
	}
	buffer.Unmap()

	return buffer
}

// readBuffer copies a device buffer to host memory through a pooled
// staging buffer. The map wait inside doubles as a queue drain for all
// work submitted before the call.
func (d *Device) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	aligned := alignUp(size, 4)

	staging, capacity := d.bufferPool.AcquireStaging(aligned)
	defer d.bufferPool.ReleaseStaging(staging, capacity)

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, aligned)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, aligned); err != nil {
		return nil, fmt.Errorf("gpu: failed to map staging buffer: %w", err)
	}

	ptr := staging.GetMappedRange(0, aligned)
	out := make([]byte, aligned)
	copy(out, unsafe.Slice((*byte)(ptr), aligned))
	staging.Unmap()

	return out[:size], nil
}

// Upload makes a host container device resident. The returned container
// is dual resident: it shares the input's host bytes and owns a fresh
// device buffer holding the same values. The input is unchanged.
func (d *Device) Upload(c *volume.Container) (*volume.Container, error) {
	if c == nil {
		return nil, fmt.Errorf("gpu: nil container")
	}
	if !c.HostAccessible() {
		return nil, fmt.Errorf("gpu: container has no host content to upload")
	}

	buffer, size := d.createStorageBuffer(c.Bytes())
	out, err := c.WithDevice(&volume.DeviceData{
		Ptr:   unsafe.Pointer(buffer),
		Size:  size,
		Queue: d,
	})
	if err != nil {
		buffer.Release()
		return nil, err
	}
	return out, nil
}

// Download copies a device-resident container back to a fresh host
// container, draining the queue first so the bytes are final.
func (d *Device) Download(c *volume.Container) (*volume.Container, error) {
	if c == nil {
		return nil, fmt.Errorf("gpu: nil container")
	}
	if !c.DeviceAccessible() {
		return nil, fmt.Errorf("gpu: container is not device resident")
	}

	dev := c.Device()
	data, err := d.readBuffer((*wgpu.Buffer)(dev.Ptr), uint64(c.ByteSize()))
	if err != nil {
		return nil, fmt.Errorf("gpu: download failed: %w", err)
	}

	out, err := volume.NewHost(c.SampleType(), c.Len())
	if err != nil {
		return nil, err
	}
	copy(out.Bytes(), data)
	return out, nil
}
