package engine

import (
	"fmt"
	"sync"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/jni"
)

// VMInterceptor owns the shadow JavaVM.
type VMInterceptor struct {
	ctx *Context
	env *EnvInterceptor

	mu     sync.Mutex
	shadow *shadowTable
}

func newVMInterceptor(c *Context) *VMInterceptor {
	return &VMInterceptor{ctx: c}
}

// IsInitialised reports whether the shadow VM exists.
func (v *VMInterceptor) IsInitialised() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shadow != nil
}

// Create builds the shadow VM from the real VM. Later calls return the same
// pointer.
func (v *VMInterceptor) Create(realVM uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shadow != nil {
		return v.shadow.block, nil
	}
	if realVM == 0 {
		return 0, fmt.Errorf("create shadow JavaVM: null JavaVM")
	}
	st, err := v.ctx.buildShadow(jni.VMTable, realVM)
	if err != nil {
		return 0, fmt.Errorf("create shadow JavaVM: %w", err)
	}
	v.shadow = st
	return st.block, nil
}

// Get returns the shadow VM pointer.
func (v *VMInterceptor) Get() (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shadow == nil {
		return 0, ErrNotInitialised
	}
	return v.shadow.block, nil
}

// GetOrCreate returns the shadow VM, building it from realVM if needed.
func (v *VMInterceptor) GetOrCreate(realVM uint64) (uint64, error) {
	if p, err := v.Get(); err == nil {
		return p, nil
	}
	return v.Create(realVM)
}

// IsShadow reports whether p is the shadow VM.
func (v *VMInterceptor) IsShadow(p uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shadow != nil && v.shadow.block == p
}

func (v *VMInterceptor) primary() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shadow == nil {
		return 0
	}
	return v.shadow.real
}

// Slot returns the function pointer the shadow VM holds for a method.
func (v *VMInterceptor) Slot(name string) (uint64, error) {
	m, ok := jni.LookupVM(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	block, err := v.Get()
	if err != nil {
		return 0, err
	}
	ptr := v.ctx.abi.PointerSize()
	return abi.ReadPointer(v.ctx.proc, block+uint64(ptr*(1+m.Index)), ptr)
}

// adoptOut handles a JavaVM** out-parameter: the real VM is recorded and
// replaced with the shadow VM.
func (v *VMInterceptor) adoptOut(pvm uint64) error {
	c := v.ctx
	ptr := c.abi.PointerSize()
	real, err := abi.ReadPointer(c.proc, pvm, ptr)
	if err != nil {
		return fmt.Errorf("read JavaVM out-parameter: %w", err)
	}
	if real == 0 || v.IsShadow(real) {
		return nil
	}
	c.Threads.SetJavaVM(real)
	shadow, err := v.GetOrCreate(real)
	if err != nil {
		return err
	}
	return abi.WritePointer(c.proc, pvm, ptr, shadow)
}
