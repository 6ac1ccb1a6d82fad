package ops

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// checkArgs rejects argument names the operator does not declare.
func checkArgs(spec OpSpec, known ...string) error {
	for name := range spec.Args {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%w: operator %q: unknown argument %q", ErrInvalidConfiguration, spec.Op, name)
		}
	}
	return nil
}

// decodeArgs fills cfg from the spec's arguments. Weak typing lets
// integer literals satisfy float fields and the like; argument names
// without a matching field are left to the per-sample resolver.
func decodeArgs(spec OpSpec, cfg any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(spec.Args); err != nil {
		return fmt.Errorf("%w: operator %q: %v", ErrInvalidConfiguration, spec.Op, err)
	}
	return nil
}

// argVector resolves a broadcastable numeric argument to one value per
// sample: an absent argument broadcasts def, a scalar broadcasts, and a
// slice must carry exactly one entry per sample.
func argVector(spec OpSpec, name string, n int, def float32) ([]float32, error) {
	raw, ok := spec.Args[name]
	if !ok {
		return broadcast(def, n), nil
	}

	switch v := raw.(type) {
	case float32:
		return broadcast(v, n), nil
	case float64:
		return broadcast(float32(v), n), nil
	case int:
		return broadcast(float32(v), n), nil
	case []float32:
		if len(v) != n {
			return nil, argLenError(name, len(v), n)
		}
		return slices.Clone(v), nil
	case []float64:
		if len(v) != n {
			return nil, argLenError(name, len(v), n)
		}
		out := make([]float32, n)
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []int:
		if len(v) != n {
			return nil, argLenError(name, len(v), n)
		}
		out := make([]float32, n)
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		if len(v) != n {
			return nil, argLenError(name, len(v), n)
		}
		out := make([]float32, n)
		for i, e := range v {
			f, err := toFloat(e)
			if err != nil {
				return nil, fmt.Errorf("%w: argument %q[%d]: %v", ErrInvalidInput, name, i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: argument %q: unsupported value type %T", ErrInvalidInput, name, raw)
	}
}

func broadcast(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func argLenError(name string, got, want int) error {
	return fmt.Errorf("%w: argument %q has %d values for %d samples", ErrInvalidInput, name, got, want)
}

func toFloat(v any) (float32, error) {
	switch f := v.(type) {
	case float32:
		return f, nil
	case float64:
		return float32(f), nil
	case int:
		return float32(f), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// parseDType maps a dtype argument to an element type. Empty keeps the
// input type.
func parseDType(s string) (tensor.DataType, bool, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, false, nil
	case "uint8", "u8":
		return tensor.Uint8, true, nil
	case "int16", "i16":
		return tensor.Int16, true, nil
	case "int32", "i32":
		return tensor.Int32, true, nil
	case "float32", "float", "f32":
		return tensor.Float32, true, nil
	default:
		return 0, false, fmt.Errorf("%w: unsupported dtype %q", ErrInvalidConfiguration, s)
	}
}
