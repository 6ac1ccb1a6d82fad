package kernels

import (
	"fmt"
	"sort"
)

// Manager owns kernel instances for one operator. Instances live in
// per-signature arenas indexed by worker id: worker w only ever touches slot
// w of an arena, so instance state needs no locking.
//
// The initialized signature set only grows within a run; switching input
// types across iterations reuses previously built arenas.
type Manager[K any] struct {
	table   *Table[K]
	workers int
	arenas  map[Signature][]K
}

// NewManager creates a manager over a dispatch table with worker slots.
func NewManager[K any](table *Table[K], workers int) *Manager[K] {
	if workers < 1 {
		panic(fmt.Sprintf("kernel manager needs at least one worker slot, got %d", workers))
	}
	return &Manager[K]{
		table:   table,
		workers: workers,
		arenas:  make(map[Signature][]K),
	}
}

// Initialize ensures an arena of kernel instances exists for the signature.
// Idempotent: an already-initialized signature is left untouched, so
// instance state survives across iterations.
func (m *Manager[K]) Initialize(sig Signature) error {
	if _, ok := m.arenas[sig]; ok {
		return nil
	}
	factory, err := m.table.Lookup(sig)
	if err != nil {
		return err
	}
	arena := make([]K, m.workers)
	for i := range arena {
		arena[i] = factory()
	}
	m.arenas[sig] = arena
	return nil
}

// Resize grows the worker slot count. Existing instances keep their slots;
// new slots get fresh instances. Shrinking is not supported: the arena
// bound is the largest worker count seen.
func (m *Manager[K]) Resize(workers int) {
	if workers <= m.workers {
		return
	}
	for sig, arena := range m.arenas {
		factory, _ := m.table.Lookup(sig)
		for len(arena) < workers {
			arena = append(arena, factory())
		}
		m.arenas[sig] = arena
	}
	m.workers = workers
}

// Get returns worker w's instance for the signature.
// Panics if the signature was never initialized.
func (m *Manager[K]) Get(sig Signature, worker int) K {
	arena, ok := m.arenas[sig]
	if !ok {
		panic(fmt.Sprintf("%s kernel %s used before Initialize", m.table.Name(), sig))
	}
	return arena[worker]
}

// Workers returns the current slot count.
func (m *Manager[K]) Workers() int {
	return m.workers
}

// Signatures returns the initialized signatures in stable order.
func (m *Manager[K]) Signatures() []Signature {
	sigs := make([]Signature, 0, len(m.arenas))
	for sig := range m.arenas {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].In != sigs[j].In {
			return sigs[i].In < sigs[j].In
		}
		return sigs[i].Out < sigs[j].Out
	})
	return sigs
}
