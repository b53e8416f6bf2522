package libc

import (
	"bytes"
	"strings"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	"github.com/zboralski/jniscope/internal/stubs"
)

const (
	maxString = 4096
	maxCopy   = 0x100000
)

func init() {
	stubs.RegisterFunc("libc", "strlen", stubStrlen)
	stubs.RegisterFunc("libc", "memcpy", stubMemcpy, "__memcpy_chk")
	stubs.RegisterFunc("libc", "memset", stubMemset, "__memset_chk")
	stubs.RegisterFunc("libc", "memmove", stubMemmove, "__memmove_chk")
	stubs.RegisterFunc("libc", "memcmp", stubMemcmp)
	stubs.RegisterFunc("libc", "strcmp", stubStrcmp)
	stubs.RegisterFunc("libc", "strncmp", stubStrncmp)
	stubs.RegisterFunc("libc", "strcpy", stubStrcpy, "__strcpy_chk")
	stubs.RegisterFunc("libc", "strncpy", stubStrncpy)
	stubs.RegisterFunc("libc", "strcat", stubStrcat, "__strcat_chk")
	stubs.RegisterFunc("libc", "strchr", stubStrchr)
	stubs.RegisterFunc("libc", "strrchr", stubStrrchr)
	stubs.RegisterFunc("libc", "strstr", stubStrstr)
	stubs.RegisterFunc("libc", "strdup", stubStrdup)
	stubs.RegisterFunc("libc", "strndup", stubStrndup)
}

func returnInt(emu *emulator.Emulator, v int) bool {
	stubs.SetReturnTyped(emu, jni.FFIInt32, uint64(int64(v)))
	stubs.ReturnFromStub(emu)
	return false
}

func returnPtr(emu *emulator.Emulator, p uint64) bool {
	stubs.SetReturn(emu, p)
	stubs.ReturnFromStub(emu)
	return false
}

func str(emu *emulator.Emulator, addr uint64, n int) string {
	if addr == 0 || n <= 0 {
		return ""
	}
	s, _ := emu.MemReadString(addr, n)
	return s
}

func stubStrlen(emu *emulator.Emulator) bool {
	length := uint64(len(str(emu, stubs.Arg(emu, 0), maxString)))
	stubs.DefaultRegistry.Log("libc", "strlen", stubs.FormatPtr("len", length))
	return returnPtr(emu, length)
}

func copyMem(emu *emulator.Emulator, dest, src, n uint64) {
	if n == 0 || n >= maxCopy {
		return
	}
	if data, err := emu.MemRead(src, n); err == nil {
		emu.MemWrite(dest, data)
	}
}

func stubMemcpy(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	copyMem(emu, a[0], a[1], a[2])
	stubs.DefaultRegistry.Log("libc", "memcpy", formatMemop(a[0], a[1], a[2]))
	return returnPtr(emu, a[0])
}

func stubMemmove(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	copyMem(emu, a[0], a[1], a[2])
	stubs.DefaultRegistry.Log("libc", "memmove", formatMemop(a[0], a[1], a[2]))
	return returnPtr(emu, a[0])
}

func stubMemset(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	dest, c, n := a[0], byte(a[1]), a[2]
	if n > 0 && n < maxCopy {
		emu.MemWrite(dest, bytes.Repeat([]byte{c}, int(n)))
	}
	stubs.DefaultRegistry.Log("libc", "memset", stubs.FormatPtrPair("dest", dest, "c", uint64(c)))
	return returnPtr(emu, dest)
}

func stubMemcmp(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	n := a[2]
	if n == 0 || n >= maxCopy {
		return returnInt(emu, 0)
	}
	s1, _ := emu.MemRead(a[0], n)
	s2, _ := emu.MemRead(a[1], n)
	return returnInt(emu, bytes.Compare(s1, s2))
}

func stubStrcmp(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	return returnInt(emu, strings.Compare(str(emu, a[0], maxString), str(emu, a[1], maxString)))
}

func stubStrncmp(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	if a[2] == 0 {
		return returnInt(emu, 0)
	}
	n := int(min(a[2], maxString))
	return returnInt(emu, strings.Compare(str(emu, a[0], n), str(emu, a[1], n)))
}

func stubStrcpy(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	emu.MemWriteString(a[0], str(emu, a[1], maxString))
	return returnPtr(emu, a[0])
}

func stubStrncpy(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	dest, n := a[0], min(a[2], maxCopy)
	data := make([]byte, n)
	copy(data, str(emu, a[1], int(n)))
	emu.MemWrite(dest, data)
	return returnPtr(emu, dest)
}

func stubStrcat(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	emu.MemWriteString(a[0], str(emu, a[0], maxString)+str(emu, a[1], maxString))
	return returnPtr(emu, a[0])
}

func stubStrchr(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	s := str(emu, a[0], maxString)
	c := byte(a[1])
	if c == 0 {
		return returnPtr(emu, a[0]+uint64(len(s)))
	}
	if i := strings.IndexByte(s, c); i >= 0 {
		return returnPtr(emu, a[0]+uint64(i))
	}
	return returnPtr(emu, 0)
}

func stubStrrchr(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	s := str(emu, a[0], maxString)
	c := byte(a[1])
	if c == 0 {
		return returnPtr(emu, a[0]+uint64(len(s)))
	}
	if i := strings.LastIndexByte(s, c); i >= 0 {
		return returnPtr(emu, a[0]+uint64(i))
	}
	return returnPtr(emu, 0)
}

func stubStrstr(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	if i := strings.Index(str(emu, a[0], maxString), str(emu, a[1], 256)); i >= 0 {
		return returnPtr(emu, a[0]+uint64(i))
	}
	return returnPtr(emu, 0)
}

func dup(emu *emulator.Emulator, s string) uint64 {
	ptr := alloc(emu, uint64(len(s)+1))
	emu.MemWriteString(ptr, s)
	return ptr
}

func stubStrdup(emu *emulator.Emulator) bool {
	return returnPtr(emu, dup(emu, str(emu, stubs.Arg(emu, 0), maxString)))
}

func stubStrndup(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 2)
	return returnPtr(emu, dup(emu, str(emu, a[0], int(min(a[1], maxString)))))
}

func formatMemop(dest, src, n uint64) string {
	return "dst=" + stubs.FormatHex(dest) + " src=" + stubs.FormatHex(src) + " n=" + stubs.FormatHex(n)
}
