package android

import (
	"sync"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/stubs"
)

// RTLD_DEFAULT on bionic.
const rtldDefault = 0

var (
	dlMu        sync.Mutex
	dlHandles          = make(map[uint64]string) // handle -> library name
	nextHandle  uint64 = 0x7f000000
	dlLastError string
)

func init() {
	stubs.RegisterFunc("android", "dlopen", stubDlopen, "android_dlopen_ext")
	stubs.RegisterFunc("android", "dlsym", stubDlsym)
	stubs.RegisterFunc("android", "dlclose", stubDlclose)
	stubs.RegisterFunc("android", "dlerror", stubDlerror)
}

func stubDlopen(emu *emulator.Emulator) bool {
	filename := readString(emu, stubs.Arg(emu, 0), 256)

	dlMu.Lock()
	handle := nextHandle
	nextHandle += 0x1000
	dlHandles[handle] = filename
	dlLastError = ""
	dlMu.Unlock()

	stubs.DefaultRegistry.Log("android", "dlopen", filename+" -> "+stubs.FormatHex(handle))
	stubs.SetReturn(emu, handle)
	stubs.ReturnFromStub(emu)
	return false
}

// dlsym resolves against the modules loaded into the emulator. Libraries
// that were never loaded resolve nothing.
func stubDlsym(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	handle := a[0]
	symbol := readString(emu, a[1], 256)

	dlMu.Lock()
	lib, ok := dlHandles[handle]
	dlMu.Unlock()

	var addr uint64
	switch {
	case !ok && handle != rtldDefault:
		setError("invalid handle")
	case ok && lib != "":
		if m := emu.ModuleNamed(lib); m != nil {
			addr, _ = m.Lookup(symbol)
		}
	default:
		for _, m := range emu.Modules() {
			if p, found := m.Lookup(symbol); found {
				addr = p
				break
			}
		}
	}
	if addr == 0 && ok {
		setError("undefined symbol: " + symbol)
	}

	stubs.DefaultRegistry.Log("android", "dlsym", lib+":"+symbol+" -> "+stubs.FormatHex(addr))
	stubs.SetReturn(emu, addr)
	stubs.ReturnFromStub(emu)
	return false
}

func setError(msg string) {
	dlMu.Lock()
	dlLastError = msg
	dlMu.Unlock()
}

func stubDlclose(emu *emulator.Emulator) bool {
	dlMu.Lock()
	delete(dlHandles, stubs.Arg(emu, 0))
	dlMu.Unlock()

	stubs.SetReturn(emu, 0)
	stubs.ReturnFromStub(emu)
	return false
}

func stubDlerror(emu *emulator.Emulator) bool {
	dlMu.Lock()
	msg := dlLastError
	dlLastError = ""
	dlMu.Unlock()

	var ptr uint64
	if msg != "" {
		ptr = emu.Malloc(uint64(len(msg) + 1))
		emu.MemWriteString(ptr, msg)
	}
	stubs.SetReturn(emu, ptr)
	stubs.ReturnFromStub(emu)
	return false
}
