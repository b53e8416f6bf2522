// Package colorize renders trace output with 24-bit terminal colours.
// Setting JNISCOPE_NO_COLOR or NO_COLOR turns every helper into a no-op.
package colorize

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// lexerNames lists the chroma lexers tried for each instruction syntax.
var lexerNames = map[string][]string{
	"arm":   {"armasm", "gas", "nasm"},
	"arm64": {"armasm", "gas", "nasm"},
	"ia32":  {"nasm", "gas"},
	"x64":   {"nasm", "gas"},
}

var (
	lexerMu    sync.Mutex
	lexerCache = map[string]chroma.Lexer{}
)

// lexerFor returns the assembly lexer for arch, or nil when chroma has none.
func lexerFor(arch string) chroma.Lexer {
	lexerMu.Lock()
	defer lexerMu.Unlock()
	if l, ok := lexerCache[arch]; ok {
		return l
	}
	names, ok := lexerNames[arch]
	if !ok {
		names = []string{"nasm", "gas"}
	}
	var lexer chroma.Lexer
	for _, name := range names {
		if lexer = lexers.Get(name); lexer != nil {
			break
		}
	}
	lexerCache[arch] = lexer
	return lexer
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("JNISCOPE_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Instruction colorizes an instruction of the given architecture.
func Instruction(arch, insn string) string {
	if IsDisabled() {
		return insn
	}
	lexer := lexerFor(arch)
	if lexer == nil {
		return insn
	}

	_ = DisasmDark // Force registration
	iterator, err := lexer.Tokenise(nil, insn)
	if err != nil {
		return insn
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return insn
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func rgb(r, g, b int, s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm%s\033[0m", r, g, b, s)
}

// Address formats an address in yellow
func Address(addr uint64) string {
	return rgb(255, 200, 0, fmt.Sprintf("%08X", addr))
}

// Tag formats a hashtag in light pink
func Tag(tag string) string { return rgb(255, 180, 200, tag) }

// FuncName formats a function name in yellow (IDA style labels)
func FuncName(name string) string { return rgb(255, 200, 0, name) }

// Detail formats detail text in light gray
func Detail(detail string) string { return rgb(180, 180, 180, detail) }

// Border formats border characters in dark gray
func Border(s string) string { return rgb(80, 80, 80, s) }

// Comment formats comments in white
func Comment(s string) string { return rgb(255, 255, 255, s) }

// Header formats header text in blue
func Header(s string) string { return rgb(86, 156, 214, s) }

// HexBytes formats opcode bytes in light gray
func HexBytes(s string) string { return rgb(180, 180, 180, s) }

// Error formats error messages in pink
func Error(s string) string { return rgb(255, 128, 192, s) }
