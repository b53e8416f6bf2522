package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"github.com/zboralski/jniscope/internal/stubs/art"
)

// nativeCall is one native method invocation the tracer drives.
type nativeCall struct {
	name  string
	class string
	fn    uint64
	args  int // Java arguments after (env, this)
}

// exportClass decodes the class of a statically bound native, e.g.
// "Java_com_example_Foo_bar" is com/example/Foo. Overloaded exports carry
// "__<sig>" which is dropped.
func exportClass(name string) string {
	s := strings.TrimPrefix(name, "Java_")
	if i := strings.Index(s, "__"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "_")
	if len(parts) < 2 {
		return "java/lang/Object"
	}
	var b strings.Builder
	for i, p := range parts[:len(parts)-1] {
		switch {
		case p == "":
			continue
		case p[0] == '1':
			b.WriteString("_" + p[1:])
			continue
		case i > 0:
			b.WriteByte('/')
		}
		b.WriteString(p)
	}
	return b.String()
}

// nativeCalls lists the Java_* exports that pass the export filters
// followed by the methods registered through RegisterNatives.
func nativeCalls(cfg *config.Config, exports map[string]uint64, registered []art.Native) []nativeCall {
	names := make([]string, 0, len(exports))
	for name := range exports {
		if cfg.MatchesExport(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var calls []nativeCall
	for _, name := range names {
		calls = append(calls, nativeCall{name: name, class: exportClass(name), fn: exports[name]})
	}
	for _, n := range registered {
		c := nativeCall{name: n.Class + "." + n.Name + n.Sig, class: n.Class, fn: n.Fn}
		if m, err := jni.NewJavaMethod(n.Name, n.Sig); err == nil {
			c.args = len(m.Params)
		}
		calls = append(calls, c)
	}
	return calls
}

// runNatives calls every native with zeroed Java arguments. A failing
// native is logged and the rest still run.
func runNatives(ctx context.Context, emu *emulator.Emulator, s abi.Strategy, rt *art.Runtime, calls []nativeCall) error {
	log := glog.Or(nil).WithCategory("natives")
	var errs []error
	for _, c := range calls {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}
		args := make([]uint64, 2+c.args)
		args[0] = rt.Env()
		args[1] = rt.NewObject(c.class)
		ret, err := abi.Call(emu, s, c.fn, args...)
		if err != nil {
			log.Warn("native failed", glog.Fn(c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		log.Debug("native returned", glog.Fn(c.name), glog.Ptr("ret", ret))
	}
	return errors.Join(errs...)
}
