package engine

import "sync"

// AllocKind says what an engine allocation holds.
type AllocKind int

const (
	AllocTable AllocKind = iota
	AllocStub
	AllocShim
	AllocBuffer
	AllocClosure
)

func (k AllocKind) String() string {
	switch k {
	case AllocTable:
		return "table"
	case AllocStub:
		return "stub"
	case AllocShim:
		return "shim"
	case AllocBuffer:
		return "buffer"
	}
	return "closure"
}

// Allocation is a piece of guest memory the engine handed to native code.
type Allocation struct {
	Addr uint64
	Size uint64
	Kind AllocKind

	// Owner keeps Go state tied to the allocation, such as a trampoline.
	Owner any
}

// Refs keeps every allocation alive for the life of the process. Native code
// may hold any of these pointers indefinitely, so nothing is evicted.
type Refs struct {
	mu     sync.Mutex
	allocs map[uint64]Allocation
}

// NewRefs returns an empty keeper.
func NewRefs() *Refs {
	return &Refs{allocs: make(map[uint64]Allocation)}
}

// Add records a.
func (r *Refs) Add(a Allocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocs[a.Addr] = a
}

// Get returns the allocation at addr.
func (r *Refs) Get(addr uint64) (Allocation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.allocs[addr]
	return a, ok
}

// Release forgets the allocation at addr.
func (r *Refs) Release(addr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allocs, addr)
}

// Len returns the number of live allocations.
func (r *Refs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.allocs)
}
