package main

import (
	"fmt"
	"os"

	"github.com/manifesto-ai/bridge/internal/cli"
	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge keeps a domain runtime in sync with an external store",
	Long: `Bridge loads a runtime definition, connects it to an external store (memory, file,
sqlite or redis) and keeps both sides in sync. It can serve the bridge over HTTP or MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a bridge.yaml config file")
	rootCmd.PersistentFlags().StringP("definition", "d", "", "Path to the runtime definition (overrides config)")
	rootCmd.PersistentFlags().String("store", "", "Store kind: memory, file, sqlite or redis (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
}

// openApp builds a wired bridge from the persistent flags.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	opts := cli.Options{}
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.Definition, _ = cmd.Flags().GetString("definition")
	opts.Store, _ = cmd.Flags().GetString("store")
	opts.LogLevel, _ = cmd.Flags().GetString("log-level")

	cfg, err := cli.LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	level, err := cli.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cfg, logging.New(os.Stderr, level, cfg.Log.Format))
}
