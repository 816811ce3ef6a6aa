package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/spreadcall/spread"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := spread.GetInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "spreadcall version %s (%s)\n", spread.Canonical(), info.Strategy)
	},
}
