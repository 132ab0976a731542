package main

import (
	"strings"

	"github.com/manifesto-ai/bridge"
	"github.com/manifesto-ai/bridge/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the bridge as an MCP server over Standard Input/Output.
This allows AI agents to read the snapshot and execute commands as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		// Logs go to Stderr so they don't corrupt JSON-RPC on Stdout
		srv := mcp.NewServer(app.Bridge, strings.TrimSpace(bridge.Version), mcp.WithLogger(app.Logger))
		app.Logger.Info("Starting bridge MCP server (stdio)")
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
