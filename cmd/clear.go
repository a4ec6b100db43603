package cmd

import (
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset state of a running kevlar speaker",
}

var clearStatsCmd = &cobra.Command{
	Use:   "stats [interface]",
	Short: "Clear authentication statistics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := "clear-stats"
		if len(args) == 1 {
			req = "clear-stats " + args[0]
		}
		ctlRun(req)
	},
}

var clearMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Clear authentic neighbors memory",
	Run: func(cmd *cobra.Command, args []string) {
		ctlRun("clear-memory")
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.AddCommand(clearStatsCmd)
	clearCmd.AddCommand(clearMemoryCmd)
}
