// Package libc provides stub implementations for libc memory functions.
package libc

import (
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/stubs"
)

func init() {
	stubs.Register(stubs.StubDef{Name: "malloc", Hook: stubMalloc, Category: "libc"})
	stubs.Register(stubs.StubDef{Name: "calloc", Hook: stubCalloc, Category: "libc"})
	stubs.Register(stubs.StubDef{Name: "realloc", Hook: stubRealloc, Category: "libc"})
	stubs.Register(stubs.StubDef{Name: "free", Hook: stubFree, Category: "libc"})

	stubs.Register(stubs.StubDef{Name: "getpagesize", Hook: stubGetPageSize, Category: "libc"})

	// C++ operator new/delete. Both widths of size_t mangle differently.
	stubs.Register(stubs.StubDef{
		Name:     "_Znwm",
		Aliases:  []string{"_Znam", "_Znwj", "_Znaj", "_ZnwmSt11align_val_t", "_ZnamSt11align_val_t"},
		Hook:     stubNew,
		Category: "libc",
	})
	stubs.Register(stubs.StubDef{
		Name:     "_ZdlPv",
		Aliases:  []string{"_ZdaPv", "_ZdlPvm", "_ZdaPvm", "_ZdlPvj", "_ZdaPvj"},
		Hook:     stubDelete,
		Category: "libc",
	})
}

// alloc returns zeroed guest memory rounded up to 16 bytes.
func alloc(emu *emulator.Emulator, size uint64) uint64 {
	if size == 0 {
		size = 16
	}
	size = (size + 15) &^ 15
	ptr := emu.Malloc(size)
	emu.MemWrite(ptr, make([]byte, min(size, 4096)))
	return ptr
}

func stubMalloc(emu *emulator.Emulator) bool {
	size := stubs.Arg(emu, 0)
	ptr := alloc(emu, size)

	stubs.DefaultRegistry.Log("libc", "malloc", stubs.FormatPtrPair("size", size, "->", ptr))
	stubs.SetReturn(emu, ptr)
	stubs.ReturnFromStub(emu)
	return false
}

func stubCalloc(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	total := a[0] * a[1]
	ptr := alloc(emu, total)

	stubs.DefaultRegistry.Log("libc", "calloc", stubs.FormatPtrPair("total", total, "->", ptr))
	stubs.SetReturn(emu, ptr)
	stubs.ReturnFromStub(emu)
	return false
}

func stubRealloc(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	old, size := a[0], a[1]
	ptr := alloc(emu, size)

	// The old block size is unknown; copy what fits in the new one.
	if old != 0 && size > 0 && size < 0x100000 {
		if data, err := emu.MemRead(old, size); err == nil {
			emu.MemWrite(ptr, data)
		}
	}

	stubs.DefaultRegistry.Log("libc", "realloc", stubs.FormatPtrPair("size", size, "->", ptr))
	stubs.SetReturn(emu, ptr)
	stubs.ReturnFromStub(emu)
	return false
}

func stubFree(emu *emulator.Emulator) bool {
	stubs.DefaultRegistry.Log("libc", "free", stubs.FormatHex(stubs.Arg(emu, 0)))
	stubs.ReturnFromStub(emu)
	return false
}

func stubNew(emu *emulator.Emulator) bool {
	size := stubs.Arg(emu, 0)
	ptr := alloc(emu, size)

	stubs.DefaultRegistry.Log("libc", "new", stubs.FormatPtrPair("size", size, "->", ptr))
	stubs.SetReturn(emu, ptr)
	stubs.ReturnFromStub(emu)
	return false
}

func stubDelete(emu *emulator.Emulator) bool {
	stubs.DefaultRegistry.Log("libc", "delete", "")
	stubs.ReturnFromStub(emu)
	return false
}

func stubGetPageSize(emu *emulator.Emulator) bool {
	stubs.SetReturn(emu, emulator.PageSize)
	stubs.ReturnFromStub(emu)
	return false
}
