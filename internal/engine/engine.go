// Package engine intercepts the JNIEnv and JavaVM function tables of an
// emulated process.
//
// The engine hands native code shadow tables whose slots point at hooked
// trampolines. A trampoline swaps the real environment back into the first
// argument, runs the registered callbacks, forwards to the real function and
// reports a CallRecord to the transport once the call returns.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/emulator"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

var (
	// ErrUnknownMethodID is reported when a call carries a jmethodID whose
	// signature was never observed.
	ErrUnknownMethodID = errors.New("unknown method ID")
	// ErrNotInitialised is returned by Get before Create has run.
	ErrNotInitialised = errors.New("shadow table not initialised")
	// ErrNoJNIEnv is returned when no real JNIEnv is known.
	ErrNoJNIEnv = errors.New("no JNIEnv available")
)

// Process is the instrumented process.
type Process interface {
	abi.CPU
	Arch() emulator.Arch
	ThreadID() uint64
	MemReadString(addr uint64, maxLen int) (string, error)
	Malloc(size uint64) uint64
	AllocPage() (uint64, error)
	HookAddress(addr uint64, fn emulator.AddressHookFunc)
	InterceptAddress(addr uint64, onEnter func(emu *emulator.Emulator))
	ModuleAt(addr uint64) *emulator.Module
}

// Transport receives call records. Implementations must not block for long;
// the engine calls them on the intercepted thread.
type Transport interface {
	Emit(rec *CallRecord)
	Report(err error)
}

// Tracker is implemented by transports that keep handle state. Track
// receives the records that capture flags keep from Emit.
type Tracker interface {
	Track(rec *CallRecord)
}

// Context is the state shared by both interceptors.
type Context struct {
	Config    *config.Config
	Threads   *Threads
	Refs      *Refs
	Callbacks *Callbacks
	Transport Transport
	Log       *glog.Logger

	proc  Process
	abi   abi.Strategy
	start time.Time

	env *EnvInterceptor
	vm  *VMInterceptor

	frames     map[uint64][]*frame // pending calls per thread
	pendingBT  map[uint64][]Frame  // backtraces captured by variadic shims
	framesMu   sync.Mutex
	returnStub abi.Stub

	symbols *symbolCache
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(l *glog.Logger) Option {
	return func(c *Context) { c.Log = l }
}

// WithCallbacks shares a callback registry, e.g. one populated by scripts.
func WithCallbacks(cb *Callbacks) Option {
	return func(c *Context) { c.Callbacks = cb }
}

// New builds an engine for proc. It fails when the process architecture has
// no ABI strategy.
func New(proc Process, cfg *config.Config, t Transport, opts ...Option) (*Context, error) {
	s, err := abi.ForArch(proc.Arch())
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if t == nil {
		t = discard{}
	}

	c := &Context{
		Config:    cfg,
		Threads:   NewThreads(),
		Refs:      NewRefs(),
		Callbacks: NewCallbacks(),
		Transport: t,
		proc:      proc,
		abi:       s,
		start:     time.Now(),
		frames:    make(map[uint64][]*frame),
		pendingBT: make(map[uint64][]Frame),
	}
	for _, o := range opts {
		o(c)
	}
	c.Log = glog.Or(c.Log).WithCategory("engine")
	c.Threads.log = c.Log

	if c.symbols, err = newSymbolCache(proc); err != nil {
		return nil, err
	}
	if err := c.installReturnStub(); err != nil {
		return nil, fmt.Errorf("return stub: %w", err)
	}

	c.env = newEnvInterceptor(c)
	c.vm = newVMInterceptor(c)
	c.env.vm = c.vm
	c.vm.env = c.env

	c.Log.Debug("engine ready",
		zap.String("arch", s.Name()),
		zap.String("backtrace", cfg.Backtrace),
	)
	return c, nil
}

// ABI returns the calling-convention strategy in use.
func (c *Context) ABI() abi.Strategy { return c.abi }

// Env returns the JNIEnv interceptor.
func (c *Context) Env() *EnvInterceptor { return c.env }

// VM returns the JavaVM interceptor.
func (c *Context) VM() *VMInterceptor { return c.vm }

func (c *Context) millis() int64 {
	return time.Since(c.start).Milliseconds()
}

// emit hands rec to the transport. A panicking transport is logged and
// otherwise ignored.
func (c *Context) emit(rec *CallRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.Warn("transport panic", zap.Any("panic", r), glog.Method(rec.Method.Name))
		}
	}()
	c.Transport.Emit(rec)
}

// track hands a suppressed record to a Tracker transport.
func (c *Context) track(rec *CallRecord) {
	t, ok := c.Transport.(Tracker)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.Log.Warn("transport panic", zap.Any("panic", r), glog.Method(rec.Method.Name))
		}
	}()
	t.Track(rec)
}

// report logs err and forwards it to the transport.
func (c *Context) report(err error) {
	c.Log.Debug("report", zap.Error(err))
	defer func() {
		if r := recover(); r != nil {
			c.Log.Warn("transport panic", zap.Any("panic", r))
		}
	}()
	c.Transport.Report(err)
}

type discard struct{}

func (discard) Emit(*CallRecord) {}
func (discard) Report(error)     {}
