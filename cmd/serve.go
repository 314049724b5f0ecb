package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST and WebSocket API, running the watchdog and break alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Addr
		}

		hub := server.NewHub(logger)
		c, err := openApp(hub)
		if err != nil {
			return err
		}
		defer c.Close()

		srv := server.New(c, hub, server.Options{
			ReasonColumn: cfg.CSVReasonColumn,
			Location:     time.Local,
			Logger:       logger,
		})
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := c.Run(ctx); err != nil {
				logger.Error("automation stopped", "err", err)
			}
		}()
		err = srv.ListenAndServe(ctx, addr)
		logger.Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	rootCmd.AddCommand(serveCmd)
}
