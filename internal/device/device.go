// Package device implements the GPU execution backend over WebGPU: a Device
// wrapping the adapter and queue, Streams that accumulate command buffers
// and submit them in issue order, pooled device buffers, and batched kernel
// launches that cover a whole TensorList in one dispatch.
//
// The wgpu-linked files are gated to platforms shipping the native runtime;
// everywhere else NewDevice reports ErrUnavailable and the host-side packing
// helpers remain fully functional.
package device

import "errors"

// ErrUnavailable indicates the WebGPU runtime is not present on this
// platform or failed to initialize.
var ErrUnavailable = errors.New("webgpu device unavailable")

// DeviceStats reports buffer pool behavior over the device lifetime.
type DeviceStats struct {
	PoolHits    uint64
	PoolMisses  uint64
	FreeBuffers int
}

// workgroupSize is the number of threads per workgroup in all shaders.
const workgroupSize = 256

// minWorkgroups is the advisory occupancy floor: dispatches smaller than
// this leave most of the adapter idle and are logged, never rejected.
const minWorkgroups = 8

// dispatchWorkgroups returns the 1-D workgroup count covering n threads.
func dispatchWorkgroups(n int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32((n + workgroupSize - 1) / workgroupSize)
}
