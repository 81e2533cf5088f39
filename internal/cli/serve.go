package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/server"
	"github.com/optiview/optiview/internal/service"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP JSON API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Initialize the LLM stack up front; the service itself is built
		// with the WebSocket hub in its event fanout.
		if _, err := getService(true); err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}

		hub := server.NewHub()
		var m service.Model
		if model != nil {
			m = model
		}
		svc := service.New(cfg, st, embedder, m, events.Fanout(events.LogSink{}, hub), collector)

		srv := server.New(addr, svc, hub, slog.Default())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}
