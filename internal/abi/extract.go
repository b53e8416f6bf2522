package abi

import (
	"fmt"
	"math"

	"github.com/zboralski/jniscope/internal/jni"
)

// Extraction is a cursor over variadic arguments. It walks either a va_list
// or the registers saved by a capture shim.
//
// Register-based ABIs keep separate integer and vector cursors that fall back
// to a shared overflow area. ARM32 and x86 use one flat cursor.
type Extraction struct {
	flat    bool
	align8  bool   // 8-byte values start at 8-byte aligned offsets
	slot    uint64 // minimum slot size in the flat or overflow area
	ptrSize int

	gp, gpEnd uint64
	fp, fpEnd uint64
	fpStride  uint64
	stack     uint64

	start cursorStart
	next  int
}

// cursorStart is the restartable part of a cursor.
type cursorStart struct {
	gp, fp, stack uint64
}

func (x *Extraction) mark() {
	x.start = cursorStart{x.gp, x.fp, x.stack}
}

func (x *Extraction) rewind() {
	x.gp, x.fp, x.stack = x.start.gp, x.start.fp, x.start.stack
	x.next = 0
}

func (x *Extraction) advance(t jni.FFIType) uint64 {
	t = t.Promote()
	size := uint64(t.Size(x.ptrSize))

	if x.flat {
		if size == 8 && x.align8 {
			x.stack = alignUp(x.stack, 8)
		}
		addr := x.stack
		x.stack += max(size, x.slot)
		return addr
	}

	if t.IsFloat() {
		if x.fp < x.fpEnd {
			addr := x.fp
			x.fp += x.fpStride
			return addr
		}
	} else if x.gp < x.gpEnd {
		addr := x.gp
		x.gp += 8
		return addr
	}
	addr := x.stack
	x.stack += max(size, x.slot)
	return addr
}

// ExtractNextArgumentAddress returns the address of argument index of sig.
// Calls with increasing indexes walk the list once; a smaller index restarts
// from the beginning.
func (x *Extraction) ExtractNextArgumentAddress(sig []jni.FFIType, index int) (uint64, error) {
	if index < 0 || index >= len(sig) {
		return 0, fmt.Errorf("argument %d out of range (%d params)", index, len(sig))
	}
	if index < x.next {
		x.rewind()
	}
	var addr uint64
	for x.next <= index {
		addr = x.advance(sig[x.next])
		x.next++
	}
	return addr, nil
}

// EndVariadicExtraction resets the cursor to its starting position.
func (x *Extraction) EndVariadicExtraction() {
	if x != nil {
		x.rewind()
	}
}

// ReadVariadicValue reads an argument of type t stored under default argument
// promotion. A float comes back as float32 bits.
func ReadVariadicValue(mem Memory, addr uint64, t jni.FFIType, ptrSize int) (uint64, error) {
	p := t.Promote()
	raw, err := readUint(mem, addr, p.Size(ptrSize))
	if err != nil {
		return 0, err
	}
	if t == jni.FFIFloat {
		return uint64(math.Float32bits(float32(math.Float64frombits(raw)))), nil
	}
	return mask(raw, t, ptrSize), nil
}

// ReadJValue reads one element of a jvalue array.
func ReadJValue(mem Memory, base uint64, index int, t jni.FFIType, ptrSize int) (uint64, error) {
	return readUint(mem, base+uint64(index)*jni.JValueSize, t.Size(ptrSize))
}

// ReadVariadicArgs reads every argument of sig through x.
func ReadVariadicArgs(mem Memory, x *Extraction, sig []jni.FFIType, ptrSize int) ([]uint64, error) {
	out := make([]uint64, len(sig))
	for i, t := range sig {
		addr, err := x.ExtractNextArgumentAddress(sig, i)
		if err != nil {
			return out[:i], err
		}
		v, err := ReadVariadicValue(mem, addr, t, ptrSize)
		if err != nil {
			return out[:i], fmt.Errorf("read variadic argument %d at 0x%x: %w", i, addr, err)
		}
		out[i] = v
	}
	x.EndVariadicExtraction()
	return out, nil
}
