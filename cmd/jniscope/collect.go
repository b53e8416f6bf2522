package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/jniscope/internal/config"
	glog "github.com/zboralski/jniscope/internal/log"
	"github.com/zboralski/jniscope/internal/transport"
)

func newCollectCmd() *cobra.Command {
	var (
		listen string
		format string
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Receive records pushed by remote tracers (output: collector)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			glog.Init(verbose)
			sink, err := collectSink(format)
			if err != nil {
				return err
			}
			defer sink.Close()

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			glog.L.Info("collector listening", zap.String("addr", ln.Addr().String()))
			return serveCollector(cmd.Context(), ln, sink)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:7777", "address to listen on")
	cmd.Flags().StringVarP(&format, "format", "f", config.OutputConsole, "console, json or yaml")
	return cmd
}

func collectSink(format string) (transport.Sink, error) {
	switch format {
	case config.OutputConsole:
		return transport.NewConsoleSink(os.Stdout), nil
	case config.OutputJSON:
		return transport.NewJSONSink(os.Stdout), nil
	case config.OutputYAML:
		return transport.NewYAMLSink(os.Stdout), nil
	}
	return nil, fmt.Errorf("unsupported collector format %q", format)
}

// serveCollector writes every pushed message to sink until ctx ends.
func serveCollector(ctx context.Context, ln net.Listener, sink transport.Sink) error {
	var mu sync.Mutex
	path, handler := transport.NewCollectorHandler(func(m *transport.Message) {
		mu.Lock()
		defer mu.Unlock()
		if err := sink.Write(m); err != nil {
			glog.L.Warn("collector write failed", zap.Error(err))
		}
	})
	glog.L.Debug("collector handler", zap.String("path", path))

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return g.Wait()
}
