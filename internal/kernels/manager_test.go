package kernels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// countingKernel tracks how often each instance runs, standing in for real
// per-worker kernel state.
type countingKernel struct {
	runs int
}

func newTestTable() *Table[*countingKernel] {
	table := NewTable[*countingKernel]("counting")
	table.Register(Sig(tensor.Uint8, tensor.Uint8), func() *countingKernel { return &countingKernel{} })
	table.Register(Sig(tensor.Uint8, tensor.Float32), func() *countingKernel { return &countingKernel{} })
	return table
}

func TestTableLookupMiss(t *testing.T) {
	table := newTestTable()

	_, err := table.Lookup(Sig(tensor.Int16, tensor.Float32))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	// The error names both element types.
	assert.Contains(t, err.Error(), "int16")
	assert.Contains(t, err.Error(), "float32")
	assert.Contains(t, err.Error(), "counting")
}

func TestTableDuplicateRegistrationPanics(t *testing.T) {
	table := newTestTable()
	assert.Panics(t, func() {
		table.Register(Sig(tensor.Uint8, tensor.Uint8), func() *countingKernel { return &countingKernel{} })
	})
}

func TestManagerSlotsAreDisjoint(t *testing.T) {
	m := NewManager(newTestTable(), 3)
	sig := Sig(tensor.Uint8, tensor.Uint8)
	require.NoError(t, m.Initialize(sig))

	m.Get(sig, 0).runs++
	m.Get(sig, 0).runs++
	m.Get(sig, 2).runs++

	assert.Equal(t, 2, m.Get(sig, 0).runs)
	assert.Equal(t, 0, m.Get(sig, 1).runs)
	assert.Equal(t, 1, m.Get(sig, 2).runs)
}

func TestManagerInitializeIdempotent(t *testing.T) {
	m := NewManager(newTestTable(), 2)
	sig := Sig(tensor.Uint8, tensor.Float32)

	require.NoError(t, m.Initialize(sig))
	m.Get(sig, 1).runs = 7

	// A second Initialize must not discard instance state.
	require.NoError(t, m.Initialize(sig))
	assert.Equal(t, 7, m.Get(sig, 1).runs)
}

func TestManagerUnsupportedSignature(t *testing.T) {
	m := NewManager(newTestTable(), 2)
	err := m.Initialize(Sig(tensor.Float32, tensor.Float32))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestManagerSignatureSetGrows(t *testing.T) {
	m := NewManager(newTestTable(), 2)

	require.NoError(t, m.Initialize(Sig(tensor.Uint8, tensor.Uint8)))
	assert.Len(t, m.Signatures(), 1)

	require.NoError(t, m.Initialize(Sig(tensor.Uint8, tensor.Float32)))
	assert.Len(t, m.Signatures(), 2)

	// Re-initializing never shrinks the set.
	require.NoError(t, m.Initialize(Sig(tensor.Uint8, tensor.Uint8)))
	assert.Len(t, m.Signatures(), 2)
}

func TestManagerResizeKeepsInstances(t *testing.T) {
	m := NewManager(newTestTable(), 1)
	sig := Sig(tensor.Uint8, tensor.Uint8)
	require.NoError(t, m.Initialize(sig))
	m.Get(sig, 0).runs = 3

	m.Resize(4)
	assert.Equal(t, 4, m.Workers())
	assert.Equal(t, 3, m.Get(sig, 0).runs)
	assert.Equal(t, 0, m.Get(sig, 3).runs)

	// Shrinking is a no-op.
	m.Resize(2)
	assert.Equal(t, 4, m.Workers())
}

func TestManagerGetBeforeInitializePanics(t *testing.T) {
	m := NewManager(newTestTable(), 2)
	assert.Panics(t, func() { m.Get(Sig(tensor.Uint8, tensor.Uint8), 0) })
}
