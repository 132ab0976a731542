package main

import (
	"fmt"
	"os"

	"github.com/manifesto-ai/bridge/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current snapshot",
	Long:  `Captures the external store into the runtime and prints data, state and derived values as markdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		snap, err := app.Bridge.Snapshot()
		if err != nil {
			return err
		}
		render := tui.NewRenderer(os.Stdout)
		out, err := render(tui.SnapshotMarkdown("Snapshot", snap, app.Derived()))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
