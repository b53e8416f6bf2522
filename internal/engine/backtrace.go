package engine

import (
	"encoding/binary"

	"github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/config"
)

const (
	symbolCacheSize  = 4096
	fuzzyScanBytes   = 0x800
	defaultMaxFrames = 16
)

// symbolCache resolves code addresses to frames.
type symbolCache struct {
	proc Process
	lru  *freelru.SyncedLRU[uint64, Frame]
}

func hashAddress(addr uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], addr)
	return uint32(xxh3.Hash(b[:]))
}

func newSymbolCache(proc Process) (*symbolCache, error) {
	lru, err := freelru.NewSynced[uint64, Frame](symbolCacheSize, hashAddress)
	if err != nil {
		return nil, err
	}
	return &symbolCache{proc: proc, lru: lru}, nil
}

func (s *symbolCache) frame(addr uint64) Frame {
	if f, ok := s.lru.Get(addr); ok {
		return f
	}
	f := Frame{Address: addr}
	if m := s.proc.ModuleAt(addr); m != nil {
		f.Module = m.Name
		f.Symbol, f.Offset = m.Symbolize(addr)
	}
	s.lru.Add(addr, f)
	return f
}

// backtrace returns the call stack of the function being entered, starting
// at its return address.
func (c *Context) backtrace(caller uint64) []Frame {
	limit := c.Config.MaxFrames
	if limit <= 0 {
		limit = defaultMaxFrames
	}

	var addrs []uint64
	switch c.Config.Backtrace {
	case config.BacktraceNone:
		return nil
	case config.BacktraceFuzzy:
		addrs = c.fuzzyAddrs(caller, limit)
	default:
		addrs = c.accurateAddrs(caller, limit)
	}

	frames := make([]Frame, len(addrs))
	for i, a := range addrs {
		frames[i] = c.symbols.frame(a)
	}
	return frames
}

// accurateAddrs follows the frame-pointer chain.
func (c *Context) accurateAddrs(caller uint64, limit int) []uint64 {
	addrs := []uint64{caller}
	fp := c.abi.FramePointer(c.proc)
	for len(addrs) < limit && fp != 0 {
		next, ret, err := c.abi.NextFrame(c.proc, fp)
		if err != nil || ret == 0 {
			break
		}
		addrs = append(addrs, ret)
		if next <= fp {
			break
		}
		fp = next
	}
	return addrs
}

// fuzzyAddrs keeps every stack word that points into module code.
func (c *Context) fuzzyAddrs(caller uint64, limit int) []uint64 {
	addrs := []uint64{caller}
	ptr := uint64(c.abi.PointerSize())
	sp := c.abi.StackPointer(c.proc)
	for off := uint64(0); off < fuzzyScanBytes && len(addrs) < limit; off += ptr {
		w, err := abi.ReadPointer(c.proc, sp+off, int(ptr))
		if err != nil {
			break
		}
		if w == caller {
			continue
		}
		if m := c.proc.ModuleAt(w); m != nil && m.IsCode(w) {
			addrs = append(addrs, w)
		}
	}
	return addrs
}

func (c *Context) setPendingBacktrace(tid uint64, frames []Frame) {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()
	c.pendingBT[tid] = frames
}

func (c *Context) takePendingBacktrace(tid uint64) ([]Frame, bool) {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()
	bt, ok := c.pendingBT[tid]
	delete(c.pendingBT, tid)
	return bt, ok
}
