package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// Theme colours shared by the chroma style.
const (
	mnemonic = "#FFFFFF"
	register = "#87CEEB"
	number   = "#FF80C0"
	label    = "#FFC800"
	comment  = "#FF8000"
	literal  = "#00FF00"
)

// DisasmDark highlights ARM and x86 listings on a black background.
var DisasmDark = styles.Register(chroma.MustNewStyle("disasm-dark", chroma.StyleEntries{
	chroma.Text:           mnemonic,
	chroma.Background:     "bg:#000000",
	chroma.Comment:        comment,
	chroma.CommentPreproc: comment,

	chroma.Keyword:       mnemonic,
	chroma.KeywordPseudo: mnemonic, // .word, .quad
	chroma.Name:          register,
	chroma.NameBuiltin:   register, // sp, lr, pc
	chroma.NameVariable:  register,

	chroma.LiteralNumber:        number,
	chroma.LiteralNumberHex:     number,
	chroma.LiteralNumberBin:     number,
	chroma.LiteralNumberOct:     number,
	chroma.LiteralNumberInteger: number,
	chroma.LiteralNumberFloat:   number,

	chroma.NameLabel:    label,
	chroma.NameFunction: mnemonic,

	chroma.Operator:    mnemonic,
	chroma.Punctuation: mnemonic,

	chroma.String: literal,
}))
