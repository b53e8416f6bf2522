package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/disasm"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/engine"
	glog "github.com/zboralski/jniscope/internal/log"
	"github.com/zboralski/jniscope/internal/script"
	"github.com/zboralski/jniscope/internal/stubs"
	_ "github.com/zboralski/jniscope/internal/stubs/all"
	"github.com/zboralski/jniscope/internal/stubs/art"
	"github.com/zboralski/jniscope/internal/trace"
	"github.com/zboralski/jniscope/internal/transport"
	"github.com/zboralski/jniscope/internal/ui/colorize"
	"github.com/zboralski/jniscope/internal/ui/tui"
)

type traceOptions struct {
	outputs   []string
	script    string
	backtrace string
	collector string
	include   []string
	exclude   []string
	natives   bool
	showStubs bool
	maxInsn   int
}

func newTraceCmd() *cobra.Command {
	return traceCmd(&traceOptions{})
}

func traceCmd(opts *traceOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <lib.so>",
		Short: "Run JNI_OnLoad (and optionally the natives) and trace JNI calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&opts.outputs, "output", "o", nil, "sinks: console, json, yaml, collector, tui")
	f.StringVarP(&opts.script, "script", "s", "", "hook script (Interceptor.attach)")
	f.StringVarP(&opts.backtrace, "backtrace", "b", "", "backtrace mode: accurate, fuzzy, none")
	f.StringVar(&opts.collector, "collector", "", "collector URL for the collector output")
	f.StringSliceVar(&opts.include, "include-methods", nil, "only report JNI methods matching these regexps")
	f.StringSliceVar(&opts.exclude, "exclude-methods", nil, "do not report JNI methods matching these regexps")
	f.BoolVar(&opts.natives, "natives", false, "run every Java_* export and registered native after JNI_OnLoad")
	f.BoolVar(&opts.showStubs, "stubs", false, "print libc/android stub calls")
	f.IntVarP(&opts.maxInsn, "insn", "n", 0, "trace and disassemble the first n instructions")
	return cmd
}

// loadConfig reads the config file, if any, and applies flags that were set
// explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts *traceOptions) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output = opts.outputs
	}
	if f.Changed("script") {
		cfg.Script = opts.script
	}
	if f.Changed("backtrace") {
		cfg.Backtrace = opts.backtrace
	}
	if f.Changed("collector") {
		cfg.CollectorURL = opts.collector
	}
	if f.Changed("include-methods") {
		cfg.IncludeMethods = opts.include
	}
	if f.Changed("exclude-methods") {
		cfg.ExcludeMethods = opts.exclude
	}
	if f.Changed("natives") {
		cfg.RunNatives = opts.natives
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTrace(cmd *cobra.Command, path string, opts *traceOptions) error {
	glog.Init(verbose)
	stubs.Debug = verbose

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if !cfg.MatchesLibrary(path) {
		return fmt.Errorf("%s does not match the libraries list", filepath.Base(path))
	}

	arch, err := emulator.DetectArch(path)
	if err != nil {
		return err
	}
	emu, err := emulator.New(arch)
	if err != nil {
		return fmt.Errorf("create emulator: %w", err)
	}
	defer emu.Close()
	emu.SetLogger(glog.L)

	info, err := emu.LoadELF(path)
	if err != nil {
		return fmt.Errorf("load ELF: %w", err)
	}
	hooks := stubs.Install(emu, info.Imports, info.Symbols)

	rt := art.Current()
	if rt == nil {
		if rt, err = art.New(emu); err != nil {
			return fmt.Errorf("runtime: %w", err)
		}
	}

	// Console lines share one ordered writer. With only machine-readable
	// sinks, progress goes to stderr so stdout stays parseable.
	var lineDst io.Writer = os.Stderr
	switch {
	case cfg.HasOutput(config.OutputConsole):
		lineDst = os.Stdout
	case cfg.HasOutput(config.OutputTUI):
		lineDst = io.Discard
	}
	lines := newOutputWriter(lineDst)

	sinkList, viewer := sinks(cfg, lines, os.Stdout)
	coll := transport.New(emu, cfg, sinkList...)

	callbacks := engine.NewCallbacks()
	if cfg.Script != "" {
		sr := script.New(script.Host{
			Arch:      string(arch),
			Memory:    emu,
			Callbacks: callbacks,
			Console:   lines,
			Log:       glog.L,
		})
		defer sr.Close()
		if err := sr.LoadFile(cfg.Script); err != nil {
			lines.Close()
			return err
		}
	}

	eng, err := engine.New(emu, cfg, coll, engine.WithLogger(glog.L), engine.WithCallbacks(callbacks))
	if err != nil {
		lines.Close()
		return fmt.Errorf("engine: %w", err)
	}
	exports := info.JNIExports()
	if onLoad := info.FindJNIOnLoad(); onLoad != 0 {
		exports[engine.OnLoadSymbol] = onLoad
	}
	entries := eng.InstallExports(exports)

	events := &traceCollector{}
	stubs.DefaultRegistry.OnCall = func(category, name, detail string) {
		e := trace.NewEvent(emu.PC(), category, name, detail)
		trace.DefaultEnricher(e)
		switch {
		case opts.maxInsn > 0:
			events.Add(e)
		case opts.showStubs:
			lines.Line(fmt.Sprintf("  %s %s %s",
				colorize.Tag(e.Tags.Strings()[len(e.Tags)-1]), colorize.FuncName(name), colorize.Detail(detail)))
		}
	}
	defer func() { stubs.DefaultRegistry.OnCall = nil }()

	insns := 0
	if opts.maxInsn > 0 {
		traceInstructions(emu, info, events, lines, opts.maxInsn, &insns)
	}

	printHeader(lines, path, info, hooks, entries)

	run := func(ctx context.Context) error {
		var errs []error
		if onLoad := info.FindJNIOnLoad(); onLoad != 0 {
			version, err := abi.Call(emu, eng.ABI(), onLoad, rt.VM(), 0)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", engine.OnLoadSymbol, err))
			} else {
				glog.L.Info("JNI_OnLoad returned", zap.String("version", fmt.Sprintf("0x%x", version)))
			}
		}
		if cfg.RunNatives {
			calls := nativeCalls(cfg, info.JNIExports(), rt.Natives())
			if err := runNatives(ctx, emu, eng.ABI(), rt, calls); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var runErr error
	emuDone := make(chan struct{})
	g.Go(func() error {
		defer close(emuDone)
		runErr = run(ctx)
		if viewer != nil {
			viewer.Close()
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			emu.Stop()
		case <-emuDone:
		}
		return nil
	})
	if viewer != nil {
		g.Go(func() error {
			defer cancel()
			return tui.Run(ctx, filepath.Base(path), viewer.C())
		})
	}
	err = g.Wait()

	lines.Close()
	if cerr := coll.Close(); cerr != nil {
		glog.L.Warn("closing sinks", zap.Error(cerr))
	}
	for _, e := range coll.Errors() {
		glog.L.Warn("interception error", zap.Error(e))
	}
	if viewer == nil {
		out := io.Writer(os.Stdout)
		if !cfg.HasOutput(config.OutputConsole) {
			out = os.Stderr
		}
		printStats(out, coll, insns, runErr)
	}
	return err
}

// traceInstructions prints each executed instruction, up to limit, with the
// stub events that fired since the previous one.
func traceInstructions(emu *emulator.Emulator, info *emulator.ELFInfo, events *traceCollector, out *outputWriter, limit int, count *int) {
	addrToSym := make(map[uint64]string, len(info.Symbols))
	for name, addr := range info.Symbols {
		if existing, ok := addrToSym[addr]; !ok || len(name) < len(existing) {
			addrToSym[addr] = name
		}
	}
	arch := emu.Arch()
	emu.HookCode(func(e *emulator.Emulator, addr uint64, size uint32) {
		*count++
		if *count > limit {
			return
		}
		code, err := e.MemRead(addr, uint64(size))
		if err != nil {
			return
		}
		in, err := disasm.Decode(arch, addr, code)
		if err != nil {
			in = disasm.Data(addr, code)
		}
		out.Line(disasm.FormatLine(in, addrToSym[addr], events.GetAndClear()))
		if disasm.IsBlockEnd(in) {
			out.Line("")
		}
	})
}
