package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/zboralski/jniscope/internal/ui/colorize"
	"google.golang.org/protobuf/encoding/protojson"
	yaml "gopkg.in/yaml.v3"
)

var (
	threadStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#969B86", Dark: "#696969"})
	tableStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC800"))
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	dataStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
	frameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).PaddingLeft(4)
)

func render(s lipgloss.Style, text string, color bool) string {
	if !color || text == "" {
		return text
	}
	return s.Render(text)
}

func formatArg(a Arg, color bool) string {
	s := a.Value
	if a.Metadata != "" {
		s += " " + render(metaStyle, "<"+a.Metadata+">", color)
	}
	if a.Data != "" {
		d := a.Data
		if len(d) > 96 {
			d = d[:96] + "..."
		}
		s += " " + render(dataStyle, fmt.Sprintf("%q", d), color)
	}
	return s
}

// Format renders m as one console line followed by its backtrace.
func Format(m *Message, color bool) string {
	var b strings.Builder
	b.WriteString(render(threadStyle, fmt.Sprintf("[%d +%dms]", m.ThreadID, m.Timestamp), color))
	b.WriteByte(' ')
	b.WriteString(render(tableStyle, m.CallType+"->", color))
	b.WriteString(render(nameStyle, m.Method.Name, color))
	b.WriteByte('(')
	for i, a := range m.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatArg(a, color))
	}
	if len(m.JavaParams) > 0 {
		b.WriteString(" | ")
		if m.Method.Java != "" {
			b.WriteString(render(metaStyle, m.Method.Java, color) + ": ")
		}
		for i, a := range m.JavaParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatArg(a, color))
		}
	}
	b.WriteByte(')')
	if m.Method.Ret != "void" {
		b.WriteString(" = " + formatArg(m.Ret, color))
	}
	for _, f := range m.Backtrace {
		b.WriteByte('\n')
		b.WriteString(render(frameStyle, f, color))
	}
	return b.String()
}

// ConsoleSink prints human-readable lines.
type ConsoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsoleSink writes to w, coloured unless colours are disabled.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w, color: !colorize.IsDisabled()}
}

func (s *ConsoleSink) Write(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, Format(m, s.color))
	return err
}

func (s *ConsoleSink) Close() error { return nil }

// JSONSink writes one protojson object per line.
type JSONSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	opt protojson.MarshalOptions
}

// NewJSONSink writes JSON lines to w. Close flushes but does not close w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: bufio.NewWriter(w), opt: protojson.MarshalOptions{UseProtoNames: true}}
}

func (s *JSONSink) Write(m *Message) error {
	st, err := m.Struct()
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Method.Name, err)
	}
	b, err := s.opt.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Method.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// YAMLSink writes a YAML document per message.
type YAMLSink struct {
	mu  sync.Mutex
	enc *yaml.Encoder
}

func NewYAMLSink(w io.Writer) *YAMLSink {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLSink{enc: enc}
}

func (s *YAMLSink) Write(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(m)
}

func (s *YAMLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Close()
}

// ChanSink hands messages to a consumer such as the TUI. When the consumer
// falls behind, messages are dropped rather than blocking emulation.
type ChanSink struct {
	ch      chan *Message
	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewChanSink(size int) *ChanSink {
	return &ChanSink{ch: make(chan *Message, size)}
}

// C returns the receive side. It is closed by Close.
func (s *ChanSink) C() <-chan *Message { return s.ch }

func (s *ChanSink) Write(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- m:
	default:
		s.dropped++
	}
	return nil
}

// Dropped returns how many messages were discarded.
func (s *ChanSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *ChanSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
