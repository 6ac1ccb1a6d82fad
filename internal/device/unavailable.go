//go:build !windows

package device

import "github.com/feedline-ml/feedline/internal/tensor"

// Stubs for platforms without the wgpu native runtime. NewDevice
// reports ErrUnavailable and the pipeline falls back to CPU execution;
// nothing below is reachable after that check.

type Device struct{}

type Stream struct{}

type Batch struct{}

func NewDevice() (*Device, error) { return nil, ErrUnavailable }

func IsAvailable() bool { return false }

func (d *Device) Name() string       { return "unavailable" }
func (d *Device) Stats() DeviceStats { return DeviceStats{} }
func (d *Device) Close()             {}
func (d *Device) NewStream() *Stream { return &Stream{} }

func (d *Device) Upload(tl *tensor.TensorList, half bool) (*Batch, error) {
	return nil, ErrUnavailable
}

func (d *Device) NewBatch(shapes tensor.ShapeList, dtype tensor.DataType, layout tensor.Layout, storage tensor.DataType) *Batch {
	return &Batch{}
}

func (d *Device) Download(s *Stream, b *Batch, tl *tensor.TensorList) error {
	return ErrUnavailable
}

func (s *Stream) Flush()             {}
func (s *Stream) Synchronize() error { return nil }

func (s *Stream) MultiplyAdd(dst, src *Batch, args []MultiplyAddArgs) error {
	return ErrUnavailable
}

func (s *Stream) LinearTransform(dst, src *Batch, args []LinearTransformArgs) error {
	return ErrUnavailable
}

func (b *Batch) Shapes() tensor.ShapeList  { return nil }
func (b *Batch) DType() tensor.DataType    { return tensor.Uint8 }
func (b *Batch) Storage() tensor.DataType  { return tensor.Uint8 }
func (b *Batch) Layout() tensor.Layout     { return "" }
func (b *Batch) NumSamples() int           { return 0 }
func (b *Batch) TotalElements() int        { return 0 }
func (b *Batch) SetLayout(l tensor.Layout) {}
func (b *Batch) Release()                  {}
