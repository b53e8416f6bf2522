package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/engine"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"github.com/zboralski/jniscope/internal/stubs"
	"github.com/zboralski/jniscope/internal/ui/colorize"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <lib.so>",
		Short: "Show architecture and JNI entry points",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
}

func showInfo(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)

	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file not found: %s", absPath)
	}

	arch, err := emulator.DetectArch(absPath)
	if err != nil {
		return err
	}
	emu, err := emulator.New(arch)
	if err != nil {
		return fmt.Errorf("create emulator: %w", err)
	}
	defer emu.Close()

	info, err := emu.LoadELF(absPath)
	if err != nil {
		return fmt.Errorf("load binary: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Binary:  %s\n", filepath.Base(absPath))
	fmt.Fprintf(w, "Arch:    %s\n", arch)
	fmt.Fprintf(w, "Base:    0x%x\n", info.BaseAddr)
	fmt.Fprintf(w, "End:     0x%x\n", info.EndAddr)
	fmt.Fprintf(w, "Imports: %d\n", len(info.Imports))
	fmt.Fprintf(w, "Symbols: %d\n\n", len(info.Symbols))

	fmt.Fprintln(w, "JNI entry points:")
	if onLoad := info.FindJNIOnLoad(); onLoad != 0 {
		fmt.Fprintf(w, "  %s %s\n", colorize.Address(onLoad), colorize.FuncName(engine.OnLoadSymbol))
	}
	exports := info.JNIExports()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s %s %s\n", colorize.Address(exports[name]), colorize.FuncName(name),
			colorize.Detail(exportClass(name)))
	}
	if len(names) == 0 && info.FindJNIOnLoad() == 0 {
		fmt.Fprintln(w, "  none")
	}

	var names []string
	for name := range info.Imports {
		names = append(names, name)
	}
	if len(names) > 0 {
		sort.Strings(names)
		fmt.Fprintln(w, "\nImports:")
		for _, name := range names {
			how := "fallback"
			if def, ok := stubs.DefaultRegistry.Lookup(name); ok {
				how = def.Category
			}
			fmt.Fprintf(w, "  %-32s %s\n", name, colorize.Detail(how))
		}
	}
	return nil
}

func newMethodsCmd() *cobra.Command {
	var vm bool
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the JNIEnv (or JavaVM) function table with its classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := jni.EnvTable
			if vm {
				kind = jni.VMTable
			}
			printMethods(cmd, kind)
			return nil
		},
	}
	cmd.Flags().BoolVar(&vm, "vm", false, "list the JavaVM table")
	return cmd
}

func printMethods(cmd *cobra.Command, kind jni.TableKind) {
	w := cmd.OutOrStdout()
	for _, m := range jni.Methods(kind) {
		if m.Reserved {
			fmt.Fprintf(w, "%3d  %s\n", m.Index, colorize.Detail("reserved"))
			continue
		}
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = p.String()
		}
		var notes []string
		if m.Tail != jni.TailNone {
			notes = append(notes, m.Tail.String())
		}
		if m.MethodIDArg >= 0 {
			notes = append(notes, fmt.Sprintf("methodID=%d", m.MethodIDArg))
		}
		if len(m.StringArgs) > 0 {
			notes = append(notes, fmt.Sprintf("strings=%v", m.StringArgs))
		}
		if m.Region != nil {
			notes = append(notes, fmt.Sprintf("region=%s[%d]", m.Region.Elem, m.Region.Buf))
		}
		if b := m.Bookkeeping.String(); b != "" {
			notes = append(notes, b)
		}
		line := fmt.Sprintf("%3d  %s %s(%s)", m.Index, m.Return, colorize.FuncName(m.Name), strings.Join(params, ", "))
		if len(notes) > 0 {
			line += "  " + colorize.Comment("; "+strings.Join(notes, " "))
		}
		fmt.Fprintln(w, line)
	}
}
