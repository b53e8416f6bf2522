package abi

import (
	"fmt"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
)

// Runner is a CPU that can execute guest code.
type Runner interface {
	CPU
	Run(start, end uint64) error
	Sentinel() uint64
}

// Call invokes fn with pointer-sized integer arguments and runs until it
// returns to the runner's sentinel. The stack pointer is restored afterwards.
// It starts a new emulation, so it must not be used from inside a hook.
func Call(r Runner, s Strategy, fn uint64, args ...uint64) (uint64, error) {
	params := make([]jni.FFIType, len(args))
	for i := range params {
		params[i] = jni.FFIPointer
	}
	locs := s.Arguments(params)

	var stackBytes uint64
	for _, l := range locs {
		if l.Kind == OnStack {
			stackBytes = max(stackBytes, l.Offset+8)
		}
	}

	saved := s.StackPointer(r)
	sp := (saved - 0x100 - stackBytes) &^ 15
	if a := s.Arch(); a == emulator.X86 || a == emulator.X64 {
		sp -= uint64(s.PointerSize()) // return address slot
	}
	if err := s.SetStackPointer(r, sp); err != nil {
		return 0, err
	}
	defer s.SetStackPointer(r, saved)

	for i, l := range locs {
		if err := s.WriteArgument(r, l, args[i]); err != nil {
			return 0, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	if err := s.SetReturnAddress(r, r.Sentinel()); err != nil {
		return 0, err
	}
	if err := r.Run(fn, r.Sentinel()); err != nil {
		return 0, fmt.Errorf("call 0x%x: %w", fn, err)
	}
	return s.ReturnValue(r, jni.FFIPointer)
}
