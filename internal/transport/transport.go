// Package transport turns engine call records into messages and fans them
// out to sinks.
//
// The Collector keeps the state needed to make records readable: class names
// behind jclass handles, name and signature behind jmethodID and jfieldID
// values, and the length of every array it has seen so that element buffers
// can be dumped when they are released.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/engine"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// Memory reads the instrumented process.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemReadString(addr uint64, maxLen int) (string, error)
	PointerSize() int
}

// Sink receives messages. Write is called from the intercepted thread.
type Sink interface {
	Write(m *Message) error
	Close() error
}

// Collector implements engine.Transport.
type Collector struct {
	session string
	cfg     *config.Config
	mem     Memory
	sinks   []Sink
	log     *glog.Logger

	mu         sync.Mutex
	arraySizes map[uint64]int    // array handle -> length
	methodIDs  map[uint64]string // jmethodID -> name+sig
	fieldIDs   map[uint64]string // jfieldID -> name:sig
	objects    map[uint64]string // jclass/jobject -> class name

	errMu sync.Mutex
	errs  []error
	sent  int
}

var (
	_ engine.Transport = (*Collector)(nil)
	_ engine.Tracker   = (*Collector)(nil)
)

// New returns a Collector with a fresh session ID.
func New(mem Memory, cfg *config.Config, sinks ...Sink) *Collector {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Collector{
		session:    uuid.NewString(),
		cfg:        cfg,
		mem:        mem,
		sinks:      sinks,
		log:        glog.Or(nil).WithCategory("transport"),
		arraySizes: make(map[uint64]int),
		methodIDs:  make(map[uint64]string),
		fieldIDs:   make(map[uint64]string),
		objects:    make(map[uint64]string),
	}
}

// Session returns the session ID stamped on every message.
func (c *Collector) Session() string { return c.session }

// AddSink attaches another sink.
func (c *Collector) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Emit records rec and writes it to every sink. Methods rejected by the
// include/exclude filters still update the trackers.
func (c *Collector) Emit(rec *engine.CallRecord) {
	c.mu.Lock()
	c.track(rec)
	if !c.cfg.MatchesMethod(rec.Method.Name) {
		c.mu.Unlock()
		return
	}
	m := c.message(rec)
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()

	for _, s := range sinks {
		if err := s.Write(m); err != nil {
			c.log.Warn("sink write failed", glog.Method(rec.Method.Name), zap.Error(err))
		}
	}
	c.errMu.Lock()
	c.sent++
	c.errMu.Unlock()
}

// Track updates the trackers from a record that is not written.
func (c *Collector) Track(rec *engine.CallRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track(rec)
}

// Report keeps err for Errors and logs it.
func (c *Collector) Report(err error) {
	c.log.Warn("engine error", zap.Error(err))
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.errs = append(c.errs, err)
}

// Errors returns the errors reported so far.
func (c *Collector) Errors() []error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return append([]error(nil), c.errs...)
}

// Sent returns how many messages were written.
func (c *Collector) Sent() int {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.sent
}

// ArraySize returns the tracked length of an array handle.
func (c *Collector) ArraySize(h uint64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.arraySizes[h]
	return n, ok
}

// MethodName returns the name+sig tracked for a jmethodID.
func (c *Collector) MethodName(id uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.methodIDs[id]
	return s, ok
}

// ObjectName returns the class name tracked for a handle.
func (c *Collector) ObjectName(h uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.objects[h]
	return s, ok
}

// Close closes every sink.
func (c *Collector) Close() error {
	c.mu.Lock()
	sinks := c.sinks
	c.sinks = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
