package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zboralski/jniscope/internal/jni"
)

var (
	// ErrAlreadyAttached is returned when a method already has callbacks.
	ErrAlreadyAttached = errors.New("callback already attached")
	// ErrUnknownMethod is returned for names outside both function tables.
	ErrUnknownMethod = errors.New("unknown JNI method")
)

// Invocation describes an intercepted call to its callbacks.
type Invocation struct {
	Method     *jni.MethodDescriptor
	JavaMethod *jni.JavaMethod // nil unless the call carries a resolved jmethodID
	ThreadID   uint64
	Caller     uint64

	// Memory reads guest memory while the call is in flight.
	Memory interface {
		MemRead(addr, size uint64) ([]byte, error)
	}
}

// ReturnValue is the mutable result handed to after-hooks.
type ReturnValue struct {
	val      uint64
	replaced bool
}

// Get returns the current result.
func (r *ReturnValue) Get() uint64 { return r.val }

// Replace sets the result the caller will see.
func (r *ReturnValue) Replace(v uint64) {
	r.val = v
	r.replaced = true
}

// Replaced reports whether a hook changed the result.
func (r *ReturnValue) Replaced() bool { return r.replaced }

// Hooks are the callbacks for one method. Before may rewrite args in place;
// the rewritten values are forwarded to the real function. Args holds the
// declared parameters followed by the Java arguments, if any.
type Hooks struct {
	Before func(inv *Invocation, args []uint64)
	After  func(inv *Invocation, ret *ReturnValue)
}

// Listener is the handle returned by Attach.
type Listener struct {
	name  string
	owner *Callbacks
	once  sync.Once
}

// Name returns the method the listener is attached to.
func (l *Listener) Name() string { return l.name }

// Detach removes the callbacks. Calling it again does nothing.
func (l *Listener) Detach() {
	l.once.Do(func() {
		l.owner.mu.Lock()
		defer l.owner.mu.Unlock()
		if e, ok := l.owner.entries[l.name]; ok && e.listener == l {
			delete(l.owner.entries, l.name)
		}
	})
}

type callbackEntry struct {
	hooks    Hooks
	listener *Listener
}

// Callbacks maps JNI method names to user hooks.
type Callbacks struct {
	mu      sync.RWMutex
	entries map[string]*callbackEntry
}

// NewCallbacks returns an empty registry.
func NewCallbacks() *Callbacks {
	return &Callbacks{entries: make(map[string]*callbackEntry)}
}

// Attach registers hooks for a JNIEnv or JavaVM method.
func (c *Callbacks) Attach(name string, h Hooks) (*Listener, error) {
	if _, ok := jni.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: Method name (%s) is not a valid JNI method.", ErrUnknownMethod, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return nil, fmt.Errorf("%w: Callback already exists for %s please detach first.", ErrAlreadyAttached, name)
	}
	l := &Listener{name: name, owner: c}
	c.entries[name] = &callbackEntry{hooks: h, listener: l}
	return l, nil
}

// Attached reports whether name has hooks.
func (c *Callbacks) Attached(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

func (c *Callbacks) hooks(name string) (Hooks, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return Hooks{}, false
	}
	return e.hooks, true
}

// RunBefore calls the before-hook of name, if any.
func (c *Callbacks) RunBefore(name string, inv *Invocation, args []uint64) {
	if h, ok := c.hooks(name); ok && h.Before != nil {
		h.Before(inv, args)
	}
}

// RunAfter calls the after-hook of name, if any, and returns the result the
// caller should see.
func (c *Callbacks) RunAfter(name string, inv *Invocation, ret uint64) uint64 {
	h, ok := c.hooks(name)
	if !ok || h.After == nil {
		return ret
	}
	box := &ReturnValue{val: ret}
	h.After(inv, box)
	return box.Get()
}
