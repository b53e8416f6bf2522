// Package android provides stub implementations for Android-specific functions.
package android

import (
	"fmt"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	"github.com/zboralski/jniscope/internal/stubs"
)

// Android log priorities.
var priorities = map[uint64]string{
	2: "V", 3: "D", 4: "I", 5: "W", 6: "E", 7: "F",
}

func init() {
	stubs.RegisterFunc("android", "__android_log_print", stubLogPrint, "__android_log_vprint")
	stubs.RegisterFunc("android", "__android_log_write", stubLogWrite)
	stubs.RegisterFunc("android", "__android_log_buf_print", stubLogBufPrint)
	stubs.RegisterFunc("android", "__android_log_buf_write", stubLogBufWrite)
	stubs.RegisterFunc("android", "__android_log_assert", stubLogAssert)
}

func prio(p uint64) string {
	if s, ok := priorities[p]; ok {
		return s
	}
	return fmt.Sprint(p)
}

func readString(emu *emulator.Emulator, addr uint64, n int) string {
	if addr == 0 {
		return ""
	}
	s, _ := emu.MemReadString(addr, n)
	return s
}

// logLine logs "P/tag: text" and returns the number of bytes libc would
// have written.
func logLine(emu *emulator.Emulator, name string, p, tag, text uint64) bool {
	msg := readString(emu, text, 1024)
	stubs.DefaultRegistry.Log("android", name, prio(p)+"/"+readString(emu, tag, 64)+": "+msg)
	stubs.SetReturnTyped(emu, jni.FFIInt32, uint64(len(msg)))
	stubs.ReturnFromStub(emu)
	return false
}

// int __android_log_print(int prio, const char *tag, const char *fmt, ...)
// The format string is logged unexpanded.
func stubLogPrint(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	return logLine(emu, "__android_log_print", a[0], a[1], a[2])
}

// int __android_log_write(int prio, const char *tag, const char *text)
func stubLogWrite(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	return logLine(emu, "__android_log_write", a[0], a[1], a[2])
}

// int __android_log_buf_print(int bufID, int prio, const char *tag, const char *fmt, ...)
func stubLogBufPrint(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 4)
	return logLine(emu, "__android_log_buf_print", a[1], a[2], a[3])
}

func stubLogBufWrite(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 4)
	return logLine(emu, "__android_log_buf_write", a[1], a[2], a[3])
}

// void __android_log_assert(const char *cond, const char *tag, const char *fmt, ...)
// Aborts on device; here the message is logged and execution stops.
func stubLogAssert(emu *emulator.Emulator) bool {
	a := stubs.Args(emu, 3)
	stubs.DefaultRegistry.Log("android", "__android_log_assert",
		readString(emu, a[1], 64)+": "+readString(emu, a[2], 256)+" ("+readString(emu, a[0], 128)+")")
	return true
}
