package main

import (
	"fmt"
	"strings"

	"github.com/manifesto-ai/bridge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bridge version %s\n", strings.TrimSpace(bridge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
