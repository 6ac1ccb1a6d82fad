// Package kernels provides typed kernel dispatch for operators: a closed
// table maps (input, output) element type pairs to kernel constructors, and
// a manager owns the constructed instances in per-worker slots.
package kernels

import (
	"errors"
	"fmt"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// ErrUnsupportedType indicates no kernel is registered for a type pair.
var ErrUnsupportedType = errors.New("unsupported type combination")

// Signature identifies one (input, output) element type pair.
type Signature struct {
	In, Out tensor.DataType
}

// Sig is shorthand for building a Signature.
func Sig(in, out tensor.DataType) Signature {
	return Signature{In: in, Out: out}
}

// String returns the pair as "in->out".
func (s Signature) String() string {
	return s.In.String() + "->" + s.Out.String()
}

// Table is a closed dispatch table from type signatures to kernel
// constructors for one kernel family. Families register every supported
// pair at package init; afterwards the table only answers lookups. A miss
// is a configuration error, never a silent fallback or truncation.
type Table[K any] struct {
	name      string
	factories map[Signature]func() K
}

// NewTable creates an empty table for the named kernel family.
func NewTable[K any](name string) *Table[K] {
	return &Table[K]{
		name:      name,
		factories: make(map[Signature]func() K),
	}
}

// Name returns the kernel family name.
func (t *Table[K]) Name() string {
	return t.name
}

// Register binds a constructor to a signature. Registering a signature twice
// is a programmer error and panics.
func (t *Table[K]) Register(sig Signature, factory func() K) {
	if _, dup := t.factories[sig]; dup {
		panic(fmt.Sprintf("%s kernel %s registered twice", t.name, sig))
	}
	t.factories[sig] = factory
}

// Lookup resolves the constructor for a signature. A miss returns an error
// wrapping ErrUnsupportedType that names both element types.
func (t *Table[K]) Lookup(sig Signature) (func() K, error) {
	factory, ok := t.factories[sig]
	if !ok {
		return nil, fmt.Errorf("no %s kernel for input %s and output %s: %w",
			t.name, sig.In, sig.Out, ErrUnsupportedType)
	}
	return factory, nil
}

// Supports reports whether the signature has a registered kernel.
func (t *Table[K]) Supports(sig Signature) bool {
	_, ok := t.factories[sig]
	return ok
}

// NumSignatures returns the number of registered pairs.
func (t *Table[K]) NumSignatures() int {
	return len(t.factories)
}
