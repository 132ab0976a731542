package main

import (
	"context"
	"fmt"
	"net"

	"github.com/manifesto-ai/bridge"
	"github.com/manifesto-ai/bridge/internal/cli"
	"github.com/manifesto-ai/bridge/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the bridge and exposes it as a JSON API over HTTP, with a server-sent event
stream of changes at /events and Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		tui.PrintBanner(cmd.ErrOrStderr(), bridge.Version)

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		if err := cli.Serve(ctx, app, ln); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			app.Logger.Info("Stopped by signal", "signal", sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides config)")
}
