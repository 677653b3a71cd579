// Serve command runs the web UI and JSON API.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/server"
	"github.com/mesh-intelligence/vento/internal/storage"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from listen_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	am, err := newAuthManager()
	if err != nil {
		return err
	}
	if am.UsingDefaultSecret() {
		logger.Warn("using the built-in development JWT secret; set VENTO_JWT_SECRET")
	}

	addr := cfg.listenAddr
	if flagAddr != "" {
		addr = flagAddr
	}
	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(server.Options{Addr: addr, Registry: reg}, storage.Instrument(b, reg), am, logger)
	if err != nil {
		return err
	}
	logger.Info("vento starting", zap.String("addr", addr), zap.String("backend", b.Name()), zap.String("version", version))
	return srv.Run(ctx)
}
