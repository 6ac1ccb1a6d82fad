//go:build windows

package device

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

type bufferClass int

const (
	classSmall bufferClass = iota
	classMedium
	classLarge
)

const (
	smallBufferMax  = 64 * 1024
	mediumBufferMax = 8 * 1024 * 1024
	maxFreePerClass = 32
)

type pooledBuffer struct {
	buf   *wgpu.Buffer
	size  uint64
	usage wgpu.BufferUsage
}

// bufferPool recycles device buffers across iterations. Batch shapes
// drift between iterations, so a free buffer satisfies any request it
// can hold with compatible usage; bind group entries clamp the visible
// range to the payload, oversized backing is harmless.
type bufferPool struct {
	device *wgpu.Device

	mu   sync.Mutex
	free [3][]*pooledBuffer

	hits   uint64
	misses uint64
}

func newBufferPool(device *wgpu.Device) *bufferPool {
	return &bufferPool{device: device}
}

// Acquire returns a buffer of at least size bytes carrying every
// requested usage flag, reusing a free one when possible.
func (p *bufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	for i, pb := range p.free[class] {
		if pb.size >= size && pb.usage&usage == usage {
			p.free[class] = append(p.free[class][:i], p.free[class][i+1:]...)
			p.hits++
			return pb.buf
		}
	}

	p.misses++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release returns a buffer to the free list, destroying it when the
// list for its class is already full.
func (p *bufferPool) Release(buf *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	if len(p.free[class]) >= maxFreePerClass {
		buf.Release()
		return
	}
	p.free[class] = append(p.free[class], &pooledBuffer{buf: buf, size: size, usage: usage})
}

// Clear destroys every pooled buffer. Called when the device closes.
func (p *bufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.free {
		for _, pb := range p.free[class] {
			pb.buf.Release()
		}
		p.free[class] = p.free[class][:0]
	}
}

func (p *bufferPool) stats() (hits, misses uint64, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.hits, p.misses, len(p.free[classSmall]) + len(p.free[classMedium]) + len(p.free[classLarge])
}

func classify(size uint64) bufferClass {
	if size < smallBufferMax {
		return classSmall
	}
	if size < mediumBufferMax {
		return classMedium
	}
	return classLarge
}
