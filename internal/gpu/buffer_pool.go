package gpu

import (
	"math/bits"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// Staging buffers are rounded up to a power-of-two class so that a
	// read-back of a slightly different size can still reuse one.
	minClassBytes = 256
	// Max pooled buffers per size class.
	maxPerClass = 8
)

// BufferPool recycles staging buffers (MapRead | CopyDst) used for
// read-backs. Storage buffers are never pooled: output buffers rely on
// WebGPU zero-initializing fresh allocations, and a recycled buffer
// would carry stale contents.
type BufferPool struct {
	device *wgpu.Device

	// classes[k] holds free buffers of exactly 1<<k bytes.
	classes map[uint][]*wgpu.Buffer
	mu      sync.Mutex

	hits   uint64
	misses uint64
}

// NewBufferPool creates a staging buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device:  device,
		classes: make(map[uint][]*wgpu.Buffer),
	}
}

// AcquireStaging returns a mappable staging buffer of at least size
// bytes, together with its actual capacity. The caller must hand the
// buffer back with ReleaseStaging when done.
func (p *BufferPool) AcquireStaging(size uint64) (*wgpu.Buffer, uint64) {
	class := sizeClass(size)
	capacity := uint64(1) << class

	p.mu.Lock()
	if free := p.classes[class]; len(free) > 0 {
		buffer := free[len(free)-1]
		p.classes[class] = free[:len(free)-1]
		p.hits++
		p.mu.Unlock()
		return buffer, capacity
	}
	p.misses++
	p.mu.Unlock()

	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  capacity,
	})
	return buffer, capacity
}

// ReleaseStaging returns a staging buffer of the given capacity to the
// pool, or releases it if the class is full.
func (p *BufferPool) ReleaseStaging(buffer *wgpu.Buffer, capacity uint64) {
	class := sizeClass(capacity)

	p.mu.Lock()
	if len(p.classes[class]) < maxPerClass {
		p.classes[class] = append(p.classes[class], buffer)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	buffer.Release()
}

// Clear releases all pooled buffers.
// Should be called when the device is released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class, free := range p.classes {
		for _, buffer := range free {
			buffer.Release()
		}
		p.classes[class] = nil
	}
}

// Stats returns hit/miss counters and the number of pooled buffers.
func (p *BufferPool) Stats() (hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, free := range p.classes {
		pooled += len(free)
	}
	return p.hits, p.misses, pooled
}

// sizeClass maps a byte size to its power-of-two class exponent.
func sizeClass(size uint64) uint {
	if size < minClassBytes {
		size = minClassBytes
	}
	class := uint(bits.Len64(size - 1))
	return class
}
