package main

import (
	"errors"
	"fmt"

	"github.com/manifesto-ai/bridge/internal/presentation/graph"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [definition]",
	Short: "Export the definition as a graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of fields, derived values and actions with their dependencies.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("definition")
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no runtime definition given")
		}

		def, err := runtime.LoadDefinitionFile(path)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
