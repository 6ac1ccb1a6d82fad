package tensor

import "strings"

// Layout tags each axis of a sample shape with its meaning, one letter per
// axis: F frames, H height, W width, C channels. An empty layout carries no
// axis semantics.
type Layout string

// Common layouts for image and video samples.
const (
	HWC  Layout = "HWC"
	FHWC Layout = "FHWC"
	CHW  Layout = "CHW"
)

// Rank returns the number of axes the layout describes.
func (l Layout) Rank() int {
	return len(l)
}

// ChannelDim returns the axis index of the channel dimension, or -1.
func (l Layout) ChannelDim() int {
	return strings.IndexByte(string(l), 'C')
}

// FrameDim returns the axis index of the frame dimension, or -1.
func (l Layout) FrameDim() int {
	return strings.IndexByte(string(l), 'F')
}

// HasFrames reports whether the layout carries a frame axis (sequences).
func (l Layout) HasFrames() bool {
	return l.FrameDim() >= 0
}

// IsChannelLast reports whether channels are the innermost axis.
func (l Layout) IsChannelLast() bool {
	return len(l) > 0 && l.ChannelDim() == len(l)-1
}

// DropFrames returns the layout with the frame axis removed, e.g. "FHWC"
// becomes "HWC". Layouts without frames are returned unchanged.
func (l Layout) DropFrames() Layout {
	f := l.FrameDim()
	if f < 0 {
		return l
	}
	return l[:f] + l[f+1:]
}
