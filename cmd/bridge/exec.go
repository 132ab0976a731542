package main

import (
	"encoding/json"
	"fmt"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <command-json>",
	Short: "Execute one command against the bridge",
	Long: `Applies a command to the runtime and pushes the result to the store. Examples:

  bridge exec '{"type": "SET_VALUE", "path": "data.name", "value": "John"}'
  bridge exec '{"type": "EXECUTE_ACTION", "action_id": "submit"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload map[string]any
		if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
			return fmt.Errorf("invalid command json: %w", err)
		}
		command, err := domain.DecodeCommand(payload)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Bridge.Execute(cmd.Context(), command); err != nil {
			return err
		}
		// A debounced push may still be pending
		if err := app.Bridge.Sync(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s applied\n", command.Kind())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
