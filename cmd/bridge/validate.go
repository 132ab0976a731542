package main

import (
	"fmt"

	"github.com/manifesto-ai/bridge/internal/cli"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and runtime definition",
	Long:  `Loads the config file and the runtime definition and reports the first problem found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.Options{}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.Definition, _ = cmd.Flags().GetString("definition")
		opts.Store, _ = cmd.Flags().GetString("store")
		opts.LogLevel, _ = cmd.Flags().GetString("log-level")

		cfg, err := cli.LoadConfig(opts)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := cli.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := runtime.LoadDefinitionFile(cfg.Definition); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Config and definition are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
