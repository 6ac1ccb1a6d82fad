package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	if got := (Shape{2, 3, 4}).NumElements(); got != 24 {
		t.Errorf("NumElements = %d, want 24", got)
	}
	if got := (Shape{}).NumElements(); got != 1 {
		t.Errorf("scalar NumElements = %d, want 1", got)
	}
}

func TestShapeValidate(t *testing.T) {
	invalid := []Shape{
		{-1},
		{2, -3},
	}
	for _, s := range invalid {
		if err := s.Validate(); err == nil {
			t.Errorf("Validate(%v) should fail but didn't", s)
		}
	}
	valid := []Shape{
		{2, 3},
		{0},
		{0, 4},
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%v) failed: %v", s, err)
		}
	}
	if got := (Shape{0, 4}).NumElements(); got != 0 {
		t.Errorf("empty shape NumElements = %d, want 0", got)
	}
}

func TestNewShapeListRankMismatch(t *testing.T) {
	_, err := NewShapeList(Shape{2, 3, 3}, Shape{4, 2})
	if err == nil {
		t.Fatal("NewShapeList with mixed ranks should fail")
	}
}

func TestShapeListTotals(t *testing.T) {
	sl, err := NewShapeList(Shape{2, 2, 3}, Shape{4, 4, 3}, Shape{1, 1, 3})
	if err != nil {
		t.Fatalf("NewShapeList failed: %v", err)
	}
	if sl.NumSamples() != 3 {
		t.Errorf("NumSamples = %d, want 3", sl.NumSamples())
	}
	if sl.Rank() != 3 {
		t.Errorf("Rank = %d, want 3", sl.Rank())
	}
	if got := sl.TotalElements(); got != 12+48+3 {
		t.Errorf("TotalElements = %d, want 63", got)
	}
	if got := sl.MaxElements(); got != 48 {
		t.Errorf("MaxElements = %d, want 48", got)
	}
	if sl.Uniform() {
		t.Error("varied list reported uniform")
	}
}

func TestUniformShapeList(t *testing.T) {
	sl := UniformShapeList(4, Shape{8, 8, 3})
	if sl.NumSamples() != 4 {
		t.Errorf("NumSamples = %d, want 4", sl.NumSamples())
	}
	if !sl.Uniform() {
		t.Error("uniform list not reported uniform")
	}

	// Clones must be independent of the prototype shape.
	sl[0][0] = 99
	if sl[1][0] != 8 {
		t.Error("mutating one sample shape leaked into another")
	}
}

func TestShapeListEqualClone(t *testing.T) {
	sl := UniformShapeList(2, Shape{3, 3, 3})
	clone := sl.Clone()
	if !sl.Equal(clone) {
		t.Error("clone not equal to original")
	}
	clone[1][2] = 7
	if sl.Equal(clone) {
		t.Error("deep clone shares shape storage")
	}
}
