// Package gpu implements the WebGPU execution layer for the darkfield
// stages. Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO
// WebGPU bindings.
package gpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/voxelforge/darkfield/volume"
)

// pipelineKey identifies one kernel instantiation by its sample type pair.
type pipelineKey struct {
	in  volume.SampleType
	out volume.SampleType
}

// Device owns the WebGPU instance, the execution queue and the caches
// shared by all stages bound to it. It implements volume.DeviceQueue,
// so device-resident containers can read back and release their buffers
// without importing this package.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache, one entry per sample type pair.
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[pipelineKey]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfoGo

	// Staging buffer pool for read-backs.
	bufferPool *BufferPool

	// Drain fence, created on first use.
	fence     *wgpu.Buffer
	fenceOnce sync.Once

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes uint64
		activeBuffers       int64
		mu                  sync.Mutex
	}
}

// New creates a new GPU device bound to the system's high-performance
// adapter. Returns an error if WebGPU is not available or
// initialization fails.
func New() (dev *Device, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = fmt.Errorf("gpu: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("gpu: failed to create instance: %w", instErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo, _ := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu: failed to get queue")
	}

	d := &Device{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[pipelineKey]*wgpu.ComputePipeline),
		adapterInfo: adapterInfo,
	}
	d.bufferPool = NewBufferPool(device)

	return d, nil
}

// Name returns a human-readable device name.
func (d *Device) Name() string {
	if d.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", d.adapterInfo.Device, d.adapterInfo.Vendor)
	}
	return "WebGPU"
}

// AdapterInfo returns information about the GPU adapter.
func (d *Device) AdapterInfo() *wgpu.AdapterInfoGo {
	return d.adapterInfo
}

// ReadBuffer implements volume.DeviceQueue. It copies a device buffer
// back to host memory through a pooled staging buffer; the map wait
// drains all work enqueued before the call.
func (d *Device) ReadBuffer(ptr unsafe.Pointer, size uint64) ([]byte, error) {
	return d.readBuffer((*wgpu.Buffer)(ptr), size)
}

// ReleaseBuffer implements volume.DeviceQueue.
func (d *Device) ReleaseBuffer(ptr unsafe.Pointer) {
	buffer := (*wgpu.Buffer)(ptr)
	if buffer == nil {
		return
	}
	buffer.Release()

	d.memoryStats.mu.Lock()
	d.memoryStats.activeBuffers--
	d.memoryStats.mu.Unlock()
}

// Drain implements volume.DeviceQueue: it blocks until all work
// enqueued so far has completed. The stages never call this themselves;
// it exists for callers that consume results host-side or on another
// queue.
func (d *Device) Drain() error {
	d.fenceOnce.Do(func() {
		d.fence = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
			Size:  4,
		})
	})
	// Reading any buffer on the queue waits for everything enqueued
	// before it, since work on one queue executes in enqueue order.
	_, err := d.readBuffer(d.fence, 4)
	return err
}

// Release releases all WebGPU resources.
// Must be called when the device is no longer needed.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bufferPool != nil {
		d.bufferPool.Clear()
		d.bufferPool = nil
	}

	for _, p := range d.pipelines {
		p.Release()
	}
	d.pipelines = nil

	for _, s := range d.shaders {
		s.Release()
	}
	d.shaders = nil

	if d.fence != nil {
		d.fence.Release()
		d.fence = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// ListAdapters returns information about the available GPU adapters.
func ListAdapters() (adapters []*wgpu.AdapterInfoGo, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = fmt.Errorf("gpu: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("gpu: failed to create instance: %w", instErr)
	}
	defer instance.Release()

	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return nil, fmt.Errorf("gpu: no adapters available: %w", adapterErr)
	}
	defer adapter.Release()

	info, infoErr := adapter.GetInfo()
	if infoErr != nil {
		return nil, fmt.Errorf("gpu: failed to get adapter info: %w", infoErr)
	}
	return []*wgpu.AdapterInfoGo{info}, nil
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	// Total bytes allocated since device creation.
	TotalAllocatedBytes uint64
	// Number of currently active buffers.
	ActiveBuffers int64
	// Staging pool statistics.
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current GPU memory usage statistics.
func (d *Device) MemoryStats() MemoryStats {
	d.memoryStats.mu.Lock()
	total := d.memoryStats.totalAllocatedBytes
	active := d.memoryStats.activeBuffers
	d.memoryStats.mu.Unlock()

	hits, misses, pooled := d.bufferPool.Stats()
	return MemoryStats{
		TotalAllocatedBytes: total,
		ActiveBuffers:       active,
		PoolHits:            hits,
		PoolMisses:          misses,
		PooledBuffers:       pooled,
	}
}

// trackBufferAllocation records a buffer allocation in memory statistics.
func (d *Device) trackBufferAllocation(size uint64) {
	d.memoryStats.mu.Lock()
	d.memoryStats.totalAllocatedBytes += size
	d.memoryStats.activeBuffers++
	d.memoryStats.mu.Unlock()
}
