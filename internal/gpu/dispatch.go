package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/voxelforge/darkfield/volume"
)

// launch describes one accepted kernel dispatch.
type launch struct {
	groupsX      uint32
	groupsY      uint32
	groupsZ      uint32
	scratchBytes int
}

// computeLaunch derives the dispatch grid for a volume: one workgroup
// per tile, rounded up per axis so partial tiles at the far edges are
// covered. It rejects launches that exceed the device limits before
// anything is encoded; this is the grid half of launch acceptance.
func computeLaunch(geom volume.Geometry) (launch, error) {
	l := launch{
		groupsX:      (geom.Width + TileWidth - 1) / TileWidth,
		groupsY:      (geom.Height + TileHeight - 1) / TileHeight,
		groupsZ:      (geom.Depth + TileDepth - 1) / TileDepth,
		scratchBytes: TileVolume * workTypeSize,
	}

	if l.scratchBytes > maxWorkgroupStorageBytes {
		return launch{}, fmt.Errorf("gpu: tile scratch %d B exceeds workgroup storage limit %d B",
			l.scratchBytes, maxWorkgroupStorageBytes)
	}
	for _, g := range []struct {
		axis   string
		groups uint32
	}{
		{"x", l.groupsX},
		{"y", l.groupsY},
		{"z", l.groupsZ},
	} {
		if g.groups > maxGroupsPerDimension {
			return launch{}, fmt.Errorf("gpu: %s grid of %d workgroups exceeds limit %d for %v",
				g.axis, g.groups, maxGroupsPerDimension, geom)
		}
	}
	return l, nil
}

// encodeParams packs the kernel uniform block: three u32 extents and
// the f32 threshold, 16 bytes total. The threshold is narrowed to f32
// here, once, so host and device compare against the identical value.
func encodeParams(geom volume.Geometry, threshold float64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], geom.Width)
	binary.LittleEndian.PutUint32(buf[4:], geom.Height)
	binary.LittleEndian.PutUint32(buf[8:], geom.Depth)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(threshold)))
	return buf
}

// Threshold enqueues the dark-field kernel over one volume and returns
// a device-resident output container without waiting for completion.
// Only launch acceptance is synchronous: kernel validation, grid and
// scratch limits, and resource creation. The output's contents are
// defined once the queue drains.
func (d *Device) Threshold(in *volume.Container, geom volume.Geometry, threshold float64, outType volume.SampleType) (*volume.Container, error) {
	if in == nil {
		return nil, fmt.Errorf("gpu: nil input container")
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if in.Len() != geom.NumVoxels() {
		return nil, fmt.Errorf("gpu: container holds %d samples, geometry %v needs %d",
			in.Len(), geom, geom.NumVoxels())
	}

	pipeline, err := d.pipeline(in.SampleType(), outType)
	if err != nil {
		return nil, err
	}
	l, err := computeLaunch(geom)
	if err != nil {
		return nil, err
	}

	// Residency: reuse the device buffer when there is one, upload
	// otherwise. The migrated temporary is released after submit; the
	// queue keeps its buffer alive until the kernel has read it.
	src := in
	if !in.DeviceAccessible() {
		migrated, err := d.Upload(in)
		if err != nil {
			return nil, fmt.Errorf("gpu: input upload failed: %w", err)
		}
		defer migrated.Release()
		src = migrated
	}

	outBuffer, outSize := d.allocOutputBuffer(outType, in.Len())
	result, err := volume.NewDeviceResident(outType, in.Len(), &volume.DeviceData{
		Ptr:   unsafe.Pointer(outBuffer),
		Size:  outSize,
		Queue: d,
	})
	if err != nil {
		outBuffer.Release()
		return nil, err
	}

	paramsBuffer := d.createUniformBuffer(encodeParams(geom, threshold))
	defer paramsBuffer.Release()

	srcDev := src.Device()
	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := d.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, (*wgpu.Buffer)(srcDev.Ptr), 0, srcDev.Size),
		wgpu.BufferBindingEntry(1, outBuffer, 0, outSize),
		wgpu.BufferBindingEntry(2, paramsBuffer, 0, 16),
	})
	defer bindGroup.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(l.groupsX, l.groupsY, l.groupsZ)
	pass.End()

	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	return result, nil
}
