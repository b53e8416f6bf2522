package libc

import (
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/stubs"
)

func init() {
	stubs.RegisterFunc("libc", "abort", stubAbort, "__stack_chk_fail")
	stubs.RegisterFunc("libc", "exit", stubExit, "_exit", "_Exit")
	stubs.RegisterFunc("libc", "atexit", stubAtexit, "__cxa_atexit", "__cxa_finalize")
}

func stubAbort(emu *emulator.Emulator) bool {
	stubs.DefaultRegistry.Log("libc", "abort", "program aborted")
	return true
}

func stubExit(emu *emulator.Emulator) bool {
	stubs.DefaultRegistry.Log("libc", "exit", stubs.FormatHex(stubs.Arg(emu, 0)))
	return true
}

// Handlers are never run; registration always succeeds.
func stubAtexit(emu *emulator.Emulator) bool {
	return returnInt(emu, 0)
}
