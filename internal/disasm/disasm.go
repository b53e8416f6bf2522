// Package disasm decodes and renders machine code for the supported
// architectures.
package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/trace"
	"github.com/zboralski/jniscope/internal/ui/colorize"
)

// ErrTruncated is returned when code ends inside an instruction.
var ErrTruncated = errors.New("truncated instruction")

// Inst is one decoded instruction.
type Inst struct {
	Arch  emulator.Arch
	Addr  uint64
	Bytes []byte
	Text  string
}

// Len returns the encoded size.
func (i Inst) Len() int { return len(i.Bytes) }

// Mnemonic returns the upper-case opcode.
func (i Inst) Mnemonic() string {
	f := strings.Fields(strings.ToUpper(i.Text))
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Decode decodes the instruction at the start of code.
func Decode(arch emulator.Arch, addr uint64, code []byte) (Inst, error) {
	switch arch {
	case emulator.ARM64:
		if len(code) < 4 {
			return Inst{}, ErrTruncated
		}
		in, err := arm64asm.Decode(code)
		if err != nil {
			return Inst{}, err
		}
		return Inst{Arch: arch, Addr: addr, Bytes: code[:4], Text: in.String()}, nil
	case emulator.ARM:
		if len(code) < 4 {
			return Inst{}, ErrTruncated
		}
		in, err := armasm.Decode(code, armasm.ModeARM)
		if err != nil {
			return Inst{}, err
		}
		return Inst{Arch: arch, Addr: addr, Bytes: code[:in.Len], Text: in.String()}, nil
	case emulator.X86, emulator.X64:
		mode := 64
		if arch == emulator.X86 {
			mode = 32
		}
		in, err := x86asm.Decode(code, mode)
		if err != nil {
			if errors.Is(err, x86asm.ErrTruncated) {
				return Inst{}, ErrTruncated
			}
			return Inst{}, err
		}
		return Inst{Arch: arch, Addr: addr, Bytes: code[:in.Len], Text: x86asm.IntelSyntax(in, addr, nil)}, nil
	}
	return Inst{}, fmt.Errorf("%w: %s", emulator.ErrUnsupportedArch, arch)
}

// Disassemble decodes code linearly. Undecodable bytes are rendered as data
// and decoding resumes after them.
func Disassemble(arch emulator.Arch, addr uint64, code []byte) ([]Inst, error) {
	switch arch {
	case emulator.ARM, emulator.ARM64, emulator.X86, emulator.X64:
	default:
		return nil, fmt.Errorf("%w: %s", emulator.ErrUnsupportedArch, arch)
	}
	var out []Inst
	for off := 0; off < len(code); {
		in, err := Decode(arch, addr+uint64(off), code[off:])
		if err != nil {
			n := 4
			if arch == emulator.X86 || arch == emulator.X64 || len(code)-off < 4 {
				n = 1
			}
			in = Data(addr+uint64(off), code[off:off+n])
		}
		out = append(out, in)
		off += in.Len()
	}
	return out, nil
}

// Data renders b as a data directive: .byte, .word or .quad by size.
func Data(addr uint64, b []byte) Inst {
	var text string
	switch len(b) {
	case 4:
		text = fmt.Sprintf(".word 0x%08x", binary.LittleEndian.Uint32(b))
	case 8:
		text = fmt.Sprintf(".quad 0x%016x", binary.LittleEndian.Uint64(b))
	default:
		parts := make([]string, len(b))
		for i, c := range b {
			parts[i] = fmt.Sprintf("0x%02x", c)
		}
		text = ".byte " + strings.Join(parts, ", ")
	}
	return Inst{Addr: addr, Bytes: b, Text: text}
}

// Tags classifies an instruction for trace comments.
func Tags(in Inst) []string {
	text := strings.ToUpper(in.Text)
	var tags []string
	switch m := in.Mnemonic(); m {
	case "BL", "CALL":
		tags = append(tags, "#call")
	case "BLR", "BLX":
		tags = append(tags, "#call", "#br")
	case "BR":
		tags = append(tags, "#br")
	case "RET":
		tags = append(tags, "#ret")
	case "BX":
		if strings.HasSuffix(text, "LR") || strings.HasSuffix(text, "R14") {
			tags = append(tags, "#ret")
		} else {
			tags = append(tags, "#br")
		}
	case "SVC", "SYSCALL", "SYSENTER":
		tags = append(tags, "#syscall")
	case "BRK", "UDF", "HLT", "INT3":
		tags = append(tags, "#trap")
	case "JMP":
		if !strings.Contains(text, "0X") {
			tags = append(tags, "#br")
		}
	case "INT":
		if strings.HasSuffix(text, "0X80") {
			tags = append(tags, "#syscall")
		}
	}
	return tags
}

// IsBlockEnd reports whether control cannot fall through to the next
// instruction.
func IsBlockEnd(in Inst) bool {
	text := strings.ToUpper(in.Text)
	m := in.Mnemonic()
	switch m {
	case "RET", "BR", "B", "ERET", "BX", "JMP", "HLT", "UDF", "BRK":
		return true
	case "POP", "LDM", "LDMIA", "LDMFD":
		return strings.Contains(text, "PC") || strings.Contains(text, "R15")
	}
	if strings.HasPrefix(m, "B.") || strings.HasPrefix(m, "CBZ") || strings.HasPrefix(m, "CBNZ") ||
		strings.HasPrefix(m, "TBZ") || strings.HasPrefix(m, "TBNZ") {
		return true
	}
	// x86 conditional jumps
	return len(m) > 1 && m[0] == 'J'
}

const (
	bytesCol = 16 // hex digits shown before truncation
	insnCol  = 56
)

// FormatLine renders one trace line: address, opcode bytes, instruction,
// tags and the stub events that fired at it.
func FormatLine(in Inst, funcName string, events []*trace.Event) string {
	var b strings.Builder
	b.Grow(256)

	visibleLen := 0

	b.WriteString(colorize.Address(in.Addr))
	b.WriteString("  ")
	visibleLen += 8 + 2

	hexBytes := opcodeHex(in)
	b.WriteString(colorize.HexBytes(hexBytes))
	for i := len(hexBytes); i < bytesCol; i++ {
		b.WriteByte(' ')
	}
	b.WriteString("  ")
	visibleLen += bytesCol + 2

	b.WriteString(colorize.Instruction(string(in.Arch), in.Text))
	visibleLen += len(in.Text)

	for visibleLen < insnCol {
		b.WriteByte(' ')
		visibleLen++
	}

	var comments []string
	for _, e := range events {
		if e.Detail != "" {
			comments = append(comments, e.Detail)
		}
		for k, v := range e.Annotations {
			comments = append(comments, k+"="+v)
		}
	}

	allTags := Tags(in)
	for _, e := range events {
		allTags = append(allTags, e.Tags.Strings()...)
	}

	if len(comments) > 0 || len(allTags) > 0 {
		var parts []string
		if len(allTags) > 0 {
			parts = append(parts, strings.Join(allTags, " "))
		}
		if len(comments) > 0 {
			parts = append(parts, strings.Join(comments, ", "))
		}
		b.WriteString(colorize.Comment("; " + strings.Join(parts, " ")))
		b.WriteString("  ")
	}

	names := make([]string, 0, len(events)+1)
	if funcName != "" {
		names = append(names, funcName)
	}
	for _, e := range events {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	for i, n := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(colorize.FuncName(n))
	}

	return strings.TrimRight(b.String(), " ")
}

// opcodeHex prints fixed-width encodings as a big-endian word, the way
// ARM listings show them, and variable-length ones byte by byte.
func opcodeHex(in Inst) string {
	if len(in.Bytes) == 4 && !strings.HasPrefix(in.Text, ".byte") {
		return fmt.Sprintf("%08X", binary.LittleEndian.Uint32(in.Bytes))
	}
	s := fmt.Sprintf("%X", in.Bytes)
	if len(s) > bytesCol {
		s = s[:bytesCol-2] + ".."
	}
	return s
}
