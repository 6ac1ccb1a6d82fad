package tensor

import "math"

// ConvertSat converts a value to element type Out with saturation: integral
// outputs are rounded half away from zero and clamped to the representable
// range of Out. Float outputs are returned as-is, neither clamped nor
// rounded.
func ConvertSat[Out Element](v float64) Out {
	var zero Out
	switch any(zero).(type) {
	case float32:
		return Out(v)
	case uint8:
		return Out(clampRound(v, 0, math.MaxUint8))
	case int16:
		return Out(clampRound(v, math.MinInt16, math.MaxInt16))
	case int32:
		return Out(clampRound(v, math.MinInt32, math.MaxInt32))
	default:
		panic("unsupported element type")
	}
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
