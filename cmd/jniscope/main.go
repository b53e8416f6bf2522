package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jniscope",
		Short: "Trace JNI calls made by Android native libraries",
		Long: `jniscope traces the JNIEnv and JavaVM calls an Android native library makes.

The library runs inside an emulator (arm, arm64, ia32 or x64) next to a fake
Android runtime. JNI_OnLoad and every Java_* native receive shadow function
tables whose slots record each call, its Java-level arguments and its result
before forwarding to the runtime.

Examples:
  jniscope trace libnative.so                 # console trace of JNI_OnLoad
  jniscope trace libnative.so --natives       # also run every registered native
  jniscope trace libnative.so -o json         # JSON lines on stdout
  jniscope trace libnative.so -s hooks.js     # attach script callbacks
  jniscope info libnative.so                  # arch and JNI entry points
  jniscope shim --arch arm64                  # show the generated stub code`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")

	rootCmd.AddCommand(
		newTraceCmd(),
		newInfoCmd(),
		newMethodsCmd(),
		newShimCmd(),
		newCollectCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
