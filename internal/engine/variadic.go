package engine

import (
	"fmt"
	"sync"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
)

// variadicSlot intercepts one "..." function. Its table entry is a capture
// shim: the shim saves the argument registers, asks the next stage which
// trampoline handles the call, restores the registers and branches there.
//
// Trampolines are specialized per jmethodID, because only the method
// signature says what the variadic arguments are.
type variadicSlot struct {
	ctx    *Context
	method *jni.MethodDescriptor
	real   uint64

	shim uint64
	buf  uint64
	next abi.Stub

	mu      sync.Mutex
	byID    map[uint64]*trampoline
	generic *trampoline // calls with an unresolved jmethodID
}

func (c *Context) newVariadicSlot(m *jni.MethodDescriptor, real uint64) (*variadicSlot, error) {
	vs := &variadicSlot{
		ctx:    c,
		method: m,
		real:   real,
		byID:   make(map[uint64]*trampoline),
	}

	size := uint64(c.abi.CaptureBufferSize())
	vs.buf = c.proc.Malloc(size)
	c.Refs.Add(Allocation{Addr: vs.buf, Size: size, Kind: AllocBuffer, Owner: vs})

	next, err := c.newStub(vs.nextStage, vs)
	if err != nil {
		return nil, fmt.Errorf("%s: next stage: %w", m, err)
	}
	vs.next = next

	if vs.shim, err = c.proc.AllocPage(); err != nil {
		return nil, fmt.Errorf("%s: shim: %w", m, err)
	}
	code := c.abi.BuildVariadicCaptureShim(vs.shim, vs.buf, next.Entry)
	if err := c.proc.MemWrite(vs.shim, code); err != nil {
		return nil, fmt.Errorf("%s: write shim at 0x%x: %w", m, vs.shim, err)
	}
	c.Refs.Add(Allocation{Addr: vs.shim, Size: emulator.PageSize, Kind: AllocShim, Owner: vs})
	c.proc.InterceptAddress(vs.shim, vs.onShimEntry)
	return vs, nil
}

// onShimEntry runs before the shim's first instruction, while the caller's
// frame is still on top. The backtrace taken here is used by the trampoline
// the call ends up in.
func (vs *variadicSlot) onShimEntry(_ *emulator.Emulator) {
	c := vs.ctx
	caller, err := c.abi.ReturnAddress(c.proc)
	if err != nil {
		return
	}
	c.setPendingBacktrace(c.proc.ThreadID(), c.backtrace(caller))
}

// nextStage is called by the shim with the original arguments still live.
// It returns the trampoline address in the return register.
func (vs *variadicSlot) nextStage(_ *emulator.Emulator) bool {
	c, m := vs.ctx, vs.method
	target := vs.real

	mid, err := vs.capturedMethodID()
	if err != nil {
		c.report(fmt.Errorf("%s: %w", m, err))
	} else if t, err := vs.specialize(mid); err != nil {
		c.report(fmt.Errorf("%s: %w", m, err))
	} else {
		target = t.stub.Entry
	}

	if err := c.abi.SetReturnValue(c.proc, jni.FFIPointer, target); err != nil {
		c.report(fmt.Errorf("%s: next stage result: %w", m, err))
	}
	return false
}

// capturedMethodID reads the jmethodID argument from the capture buffer.
func (vs *variadicSlot) capturedMethodID() (uint64, error) {
	c, m := vs.ctx, vs.method
	x, err := c.abi.BeginCaptureExtraction(c.proc, vs.buf, 0)
	if err != nil {
		return 0, err
	}
	addr, err := x.ExtractNextArgumentAddress(m.FFIParams(), m.MethodIDArg)
	if err != nil {
		return 0, err
	}
	return abi.ReadPointer(c.proc, addr, c.abi.PointerSize())
}

// specialize returns the trampoline for calls carrying mid.
func (vs *variadicSlot) specialize(mid uint64) (*trampoline, error) {
	c := vs.ctx
	jm, ok := c.env.MethodSignature(mid)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if !ok {
		if vs.generic == nil {
			t, err := c.newTrampoline(vs.method, vs.real, nil, true)
			if err != nil {
				return nil, err
			}
			vs.generic = t
		}
		return vs.generic, nil
	}

	if t, ok := vs.byID[mid]; ok && t.java == jm {
		return t, nil
	}
	t, err := c.newTrampoline(vs.method, vs.real, jm, true)
	if err != nil {
		return nil, err
	}
	vs.byID[mid] = t
	c.Log.Debug("specialized", glog.Method(vs.method.Name), glog.Ptr("mid", mid), glog.Fn(jm.String()))
	return t, nil
}
