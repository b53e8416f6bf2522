package engine

import (
	"fmt"
	"sync"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// shadowTable is a JNIEnv or JavaVM shaped block in guest memory. Word 0
// points at word 1, where the function table starts, so the block address
// can be handed out as the env or VM pointer.
type shadowTable struct {
	kind      jni.TableKind
	block     uint64
	real      uint64 // env or VM the table was built from
	realTable uint64

	trampolines map[int]*trampoline
	variadic    map[int]*variadicSlot
}

// slotAddr returns the address of function slot i in the shadow block.
func (t *shadowTable) slotAddr(i, ptrSize int) uint64 {
	return t.block + uint64(ptrSize)*uint64(1+i)
}

// buildShadow builds the shadow table for real, wrapping every intercepted
// slot.
func (c *Context) buildShadow(kind jni.TableKind, real uint64) (*shadowTable, error) {
	p, ptr := c.proc, c.abi.PointerSize()
	realTable, err := abi.ReadPointer(p, real, ptr)
	if err != nil {
		return nil, fmt.Errorf("read %s function table: %w", kind, err)
	}

	methods := jni.Methods(kind)
	size := uint64(ptr) * uint64(1+len(methods))
	st := &shadowTable{
		kind:        kind,
		block:       p.Malloc(size),
		real:        real,
		realTable:   realTable,
		trampolines: make(map[int]*trampoline),
		variadic:    make(map[int]*variadicSlot),
	}
	c.Refs.Add(Allocation{Addr: st.block, Size: size, Kind: AllocTable, Owner: st})

	if err := abi.WritePointer(p, st.block, ptr, st.slotAddr(0, ptr)); err != nil {
		return nil, err
	}

	for _, m := range methods {
		fn, err := abi.ReadPointer(p, realTable+uint64(ptr*m.Index), ptr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m, err)
		}

		entry := fn
		switch {
		case !m.Intercepted():
		case m.IsVariadic():
			vs, err := c.newVariadicSlot(m, fn)
			if err != nil {
				return nil, err
			}
			st.variadic[m.Index] = vs
			entry = vs.shim
		default:
			t, err := c.newTrampoline(m, fn, nil, false)
			if err != nil {
				return nil, err
			}
			st.trampolines[m.Index] = t
			entry = t.stub.Entry
		}

		if err := abi.WritePointer(p, st.slotAddr(m.Index, ptr), ptr, entry); err != nil {
			return nil, err
		}
		if entry != fn {
			c.Log.Intercept(kind.String(), m.Name, m.Index, entry)
		}
	}

	c.Log.Debug("shadow table built",
		zap.Stringer("table", kind),
		glog.Ptr("shadow", st.block),
		glog.Ptr("real", real),
		zap.Int("trampolines", len(st.trampolines)),
		zap.Int("variadic", len(st.variadic)),
	)
	return st, nil
}

// EnvInterceptor owns the shadow JNIEnv and the jmethodID and jfieldID
// caches.
type EnvInterceptor struct {
	ctx *Context
	vm  *VMInterceptor

	mu     sync.Mutex
	shadow *shadowTable

	idsMu     sync.RWMutex
	methodIDs map[uint64]*jni.JavaMethod
	fieldIDs  map[uint64]string
}

func newEnvInterceptor(c *Context) *EnvInterceptor {
	return &EnvInterceptor{
		ctx:       c,
		methodIDs: make(map[uint64]*jni.JavaMethod),
		fieldIDs:  make(map[uint64]string),
	}
}

// IsInitialised reports whether the shadow env exists.
func (e *EnvInterceptor) IsInitialised() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadow != nil
}

// Create builds the shadow env from the real env's function table and
// returns the shadow pointer. Later calls return the same pointer.
func (e *EnvInterceptor) Create(realEnv uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shadow != nil {
		return e.shadow.block, nil
	}
	if realEnv == 0 {
		return 0, ErrNoJNIEnv
	}
	st, err := e.ctx.buildShadow(jni.EnvTable, realEnv)
	if err != nil {
		return 0, fmt.Errorf("create shadow JNIEnv: %w", err)
	}
	e.shadow = st
	return st.block, nil
}

// Get returns the shadow env pointer.
func (e *EnvInterceptor) Get() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shadow == nil {
		return 0, ErrNotInitialised
	}
	return e.shadow.block, nil
}

// GetOrCreate returns the shadow env, building it from realEnv if needed.
func (e *EnvInterceptor) GetOrCreate(realEnv uint64) (uint64, error) {
	if p, err := e.Get(); err == nil {
		return p, nil
	}
	return e.Create(realEnv)
}

// IsShadow reports whether p is the shadow env.
func (e *EnvInterceptor) IsShadow(p uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadow != nil && e.shadow.block == p
}

// primary returns the real env the shadow table was built from.
func (e *EnvInterceptor) primary() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shadow == nil {
		return 0
	}
	return e.shadow.real
}

// Slot returns the function pointer the shadow env holds for a method.
func (e *EnvInterceptor) Slot(name string) (uint64, error) {
	m, ok := jni.LookupEnv(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	block, err := e.Get()
	if err != nil {
		return 0, err
	}
	ptr := e.ctx.abi.PointerSize()
	return abi.ReadPointer(e.ctx.proc, block+uint64(ptr*(1+m.Index)), ptr)
}

// RecordMethodID caches the Java signature of a jmethodID.
func (e *EnvInterceptor) RecordMethodID(id uint64, jm *jni.JavaMethod) {
	e.idsMu.Lock()
	defer e.idsMu.Unlock()
	e.methodIDs[id] = jm
}

// MethodSignature returns the Java method a jmethodID was resolved to.
func (e *EnvInterceptor) MethodSignature(id uint64) (*jni.JavaMethod, bool) {
	e.idsMu.RLock()
	defer e.idsMu.RUnlock()
	jm, ok := e.methodIDs[id]
	return jm, ok
}

// RecordFieldID caches "name:sig" for a jfieldID.
func (e *EnvInterceptor) RecordFieldID(id uint64, nameSig string) {
	e.idsMu.Lock()
	defer e.idsMu.Unlock()
	e.fieldIDs[id] = nameSig
}

// FieldName returns the "name:sig" a jfieldID was resolved to.
func (e *EnvInterceptor) FieldName(id uint64) (string, bool) {
	e.idsMu.RLock()
	defer e.idsMu.RUnlock()
	s, ok := e.fieldIDs[id]
	return s, ok
}

// adoptOut handles a JNIEnv** out-parameter filled by the runtime: the real
// env is recorded for tid and replaced with the shadow env.
func (e *EnvInterceptor) adoptOut(tid, penv uint64) error {
	c := e.ctx
	ptr := c.abi.PointerSize()
	real, err := abi.ReadPointer(c.proc, penv, ptr)
	if err != nil {
		return fmt.Errorf("read env out-parameter: %w", err)
	}
	if real == 0 || e.IsShadow(real) {
		return nil
	}
	c.Threads.SetJNIEnv(tid, real)
	shadow, err := e.GetOrCreate(real)
	if err != nil {
		return err
	}
	return abi.WritePointer(c.proc, penv, ptr, shadow)
}

// enterWithEnv prepares a native function call: the real env in argument 0
// is recorded for the thread and replaced with the shadow env.
func (e *EnvInterceptor) enterWithEnv(name string) {
	c := e.ctx
	s, p := c.abi, c.proc
	tid := p.ThreadID()
	loc := s.Arguments([]jni.FFIType{jni.FFIPointer})[0]
	real, err := s.ReadArgument(p, loc)
	if err != nil || real == 0 {
		c.report(fmt.Errorf("%s: %w", name, ErrNoJNIEnv))
		return
	}
	if e.IsShadow(real) {
		return
	}
	if !c.Threads.HasJNIEnv(tid) {
		c.Threads.SetJNIEnv(tid, real)
	}
	shadow, err := e.GetOrCreate(real)
	if err != nil {
		c.report(fmt.Errorf("%s: %w", name, err))
		return
	}
	if err := s.WriteArgument(p, loc, shadow); err != nil {
		c.report(fmt.Errorf("%s: substitute env: %w", name, err))
	}
	c.Log.Debug("native entry", glog.Fn(name), glog.Thread(tid), glog.Ptr("env", real))
}
