package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/disasm"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/ui/colorize"
)

// Example addresses used when listing generated code.
const (
	shimPage = emulator.StubBase
	shimBuf  = emulator.HeapBase
	shimNext = emulator.StubBase + emulator.PageSize
)

func newShimCmd() *cobra.Command {
	var arch string
	cmd := &cobra.Command{
		Use:   "shim",
		Short: "Disassemble the trampoline stub and variadic capture shim for an architecture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printShim(cmd.OutOrStdout(), emulator.Arch(arch))
		},
	}
	cmd.Flags().StringVarP(&arch, "arch", "a", string(emulator.ARM64), "arm, arm64, ia32 or x64")
	return cmd
}

func printShim(w io.Writer, arch emulator.Arch) error {
	s, err := abi.ForArch(arch)
	if err != nil {
		return err
	}

	stub := s.CreateTrampolineStub(shimPage)
	fmt.Fprintf(w, "%s trampoline stub (hook at %s)\n", colorize.Header("▶"), colorize.Address(stub.Hook))
	if err := printCode(w, arch, stub.Entry, stub.Code, 0, stub.Hook); err != nil {
		return err
	}

	shim := s.BuildVariadicCaptureShim(shimPage, shimBuf, shimNext)
	fmt.Fprintf(w, "\n%s variadic capture shim (buffer %s, %d bytes; next %s)\n", colorize.Header("▶"),
		colorize.Address(shimBuf), s.CaptureBufferSize(), colorize.Address(shimNext))
	return printCode(w, arch, shimPage, shim, literalPool(arch), 0)
}

// literalPool is the size of the trailing constants ARM shims load
// PC-relative: the buffer and next-stage addresses.
func literalPool(arch emulator.Arch) int {
	switch arch {
	case emulator.ARM, emulator.ARM64:
		return 2 * arch.PointerSize()
	}
	return 0
}

func printCode(w io.Writer, arch emulator.Arch, addr uint64, code []byte, pool int, mark uint64) error {
	insts, err := disasm.Disassemble(arch, addr, code[:len(code)-pool])
	if err != nil {
		return err
	}
	ptr := arch.PointerSize()
	for off := len(code) - pool; off < len(code); off += ptr {
		insts = append(insts, disasm.Data(addr+uint64(off), code[off:off+ptr]))
	}
	for _, in := range insts {
		line := disasm.FormatLine(in, "", nil)
		if mark != 0 && in.Addr == mark {
			line += "  " + colorize.Comment("<- hook")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
