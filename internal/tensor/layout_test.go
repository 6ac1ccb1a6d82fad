package tensor

import "testing"

func TestLayoutAxisLookups(t *testing.T) {
	cases := []struct {
		layout      Layout
		channelDim  int
		frameDim    int
		channelLast bool
	}{
		{HWC, 2, -1, true},
		{FHWC, 3, 0, true},
		{CHW, 0, -1, false},
		{"", -1, -1, false},
	}
	for _, tt := range cases {
		if got := tt.layout.ChannelDim(); got != tt.channelDim {
			t.Errorf("%q.ChannelDim() = %d, want %d", tt.layout, got, tt.channelDim)
		}
		if got := tt.layout.FrameDim(); got != tt.frameDim {
			t.Errorf("%q.FrameDim() = %d, want %d", tt.layout, got, tt.frameDim)
		}
		if got := tt.layout.IsChannelLast(); got != tt.channelLast {
			t.Errorf("%q.IsChannelLast() = %v, want %v", tt.layout, got, tt.channelLast)
		}
	}
}

func TestLayoutFrames(t *testing.T) {
	if !FHWC.HasFrames() {
		t.Error("FHWC.HasFrames() = false")
	}
	if HWC.HasFrames() {
		t.Error("HWC.HasFrames() = true")
	}
	cases := []struct {
		layout Layout
		want   Layout
	}{
		{FHWC, HWC},
		{"HWFC", "HWC"}, // frame axis need not lead
		{HWC, HWC},
		{"", ""},
	}
	for _, tt := range cases {
		if got := tt.layout.DropFrames(); got != tt.want {
			t.Errorf("%q.DropFrames() = %q, want %q", tt.layout, got, tt.want)
		}
	}
}
