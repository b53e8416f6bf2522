package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/trace"
	"github.com/zboralski/jniscope/internal/transport"
	"github.com/zboralski/jniscope/internal/ui/colorize"
)

type traceCollector struct {
	mu     sync.Mutex
	events []*trace.Event
}

func (tc *traceCollector) Add(e *trace.Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, e)
}

func (tc *traceCollector) GetAndClear() []*trace.Event {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	events := tc.events
	tc.events = nil
	return events
}

// outputWriter serializes trace lines onto a buffered writer that is flushed
// periodically.
type outputWriter struct {
	ch     chan string
	done   chan struct{}
	writer *bufio.Writer
}

func newOutputWriter(w io.Writer) *outputWriter {
	o := &outputWriter{
		ch:     make(chan string, 2048),
		done:   make(chan struct{}),
		writer: bufio.NewWriterSize(w, 64*1024),
	}
	go o.run()
	return o
}

func (w *outputWriter) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				w.writer.Flush()
				close(w.done)
				return
			}
			w.writer.WriteString(line)
			w.writer.WriteByte('\n')
		case <-ticker.C:
			w.writer.Flush()
		}
	}
}

// Line queues one line. Records are never dropped.
func (w *outputWriter) Line(line string) {
	w.ch <- line
}

// Write lets sinks print through the same queue.
func (w *outputWriter) Write(p []byte) (int, error) {
	w.Line(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func (w *outputWriter) Close() {
	close(w.ch)
	<-w.done
}

func printHeader(w *outputWriter, binary string, info *emulator.ELFInfo, hooks, entries int) {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, binary); err == nil && !strings.HasPrefix(rel, "..") {
			binary = rel
		}
	}

	w.Line("")
	w.Line(fmt.Sprintf("%s jniscope ─ JNI call tracer (%s)", colorize.Header("▶"), info.Arch))
	w.Line(fmt.Sprintf("  %s %s", colorize.Detail("Loading:"), binary))
	w.Line(fmt.Sprintf("  %s %s  %s %s",
		colorize.Detail("Base:"), colorize.Address(info.BaseAddr),
		colorize.Detail("End:"), colorize.Address(info.EndAddr)))
	w.Line(fmt.Sprintf("  %s %s  %s %s  %s %s  %s %s",
		colorize.Detail("Imports:"), colorize.FuncName(fmt.Sprint(len(info.Imports))),
		colorize.Detail("Symbols:"), colorize.FuncName(fmt.Sprint(len(info.Symbols))),
		colorize.Detail("Stubs:"), colorize.FuncName(fmt.Sprint(hooks)),
		colorize.Detail("JNI entries:"), colorize.FuncName(fmt.Sprint(entries))))
	w.Line("")
}

func printStats(w io.Writer, c *transport.Collector, insns int, err error) {
	fmt.Fprintln(w)
	fmt.Fprint(w, colorize.Border("───────────────────────────────────────── "))
	fmt.Fprintf(w, "%s calls", colorize.FuncName(fmt.Sprint(c.Sent())))
	if insns > 0 {
		fmt.Fprintf(w, "  %s insn", colorize.FuncName(fmt.Sprint(insns)))
	}
	if n := len(c.Errors()); n > 0 {
		fmt.Fprintf(w, "  %s", colorize.Error(fmt.Sprintf("%d errors", n)))
	}
	if err != nil {
		fmt.Fprintf(w, "  %s", colorize.Error(err.Error()))
	}
	fmt.Fprintln(w)
}

// sinks builds the transport sinks cfg asks for. Console lines go to lines,
// encoded records to data. The channel sink is returned separately so the
// caller can start the viewer on it.
func sinks(cfg *config.Config, lines, data io.Writer) ([]transport.Sink, *transport.ChanSink) {
	var (
		list []transport.Sink
		ch   *transport.ChanSink
	)
	for _, o := range cfg.Output {
		switch o {
		case config.OutputConsole:
			list = append(list, transport.NewConsoleSink(lines))
		case config.OutputJSON:
			list = append(list, transport.NewJSONSink(data))
		case config.OutputYAML:
			list = append(list, transport.NewYAMLSink(data))
		case config.OutputCollector:
			list = append(list, transport.NewRemoteSink(cfg.CollectorURL))
		case config.OutputTUI:
			ch = transport.NewChanSink(4096)
			list = append(list, ch)
		}
	}
	return list, ch
}
