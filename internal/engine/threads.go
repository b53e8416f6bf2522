package engine

import (
	"sync"

	glog "github.com/zboralski/jniscope/internal/log"
)

// Threads maps thread ids to their real JNIEnv and holds the process JavaVM.
type Threads struct {
	mu   sync.RWMutex
	envs map[uint64]uint64
	vm   uint64

	log *glog.Logger
}

// NewThreads returns an empty registry.
func NewThreads() *Threads {
	return &Threads{envs: make(map[uint64]uint64)}
}

// GetJNIEnv returns the real env of tid, or 0.
func (t *Threads) GetJNIEnv(tid uint64) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.envs[tid]
}

// SetJNIEnv records the real env of tid.
func (t *Threads) SetJNIEnv(tid, env uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.envs[tid] = env
}

// HasJNIEnv reports whether tid has a recorded env.
func (t *Threads) HasJNIEnv(tid uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.envs[tid]
	return ok
}

// NeedsJNIEnvUpdate reports whether env differs from what is recorded for tid.
func (t *Threads) NeedsJNIEnvUpdate(tid, env uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cur, ok := t.envs[tid]
	return !ok || cur != env
}

// GetJavaVM returns the real JavaVM, or 0.
func (t *Threads) GetJavaVM() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vm
}

// SetJavaVM records the real JavaVM. The first non-zero value wins.
func (t *Threads) SetJavaVM(vm uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.vm != 0 {
		if t.vm != vm {
			glog.Or(t.log).Debug("ignoring second JavaVM",
				glog.Ptr("have", t.vm),
				glog.Ptr("got", vm),
			)
		}
		return
	}
	t.vm = vm
}

// HasJavaVM reports whether a JavaVM is recorded.
func (t *Threads) HasJavaVM() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vm != 0
}
