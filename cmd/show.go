package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/kevlar/core"
	"github.com/encodeous/kevlar/state"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect a running kevlar speaker",
}

var showStatsCmd = &cobra.Command{
	Use:   "stats [interface]",
	Short: "Show authentication statistics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := "stats"
		if len(args) == 1 {
			req = "stats " + args[0]
		}
		ctlRun(req)
	},
}

var showMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show authentic neighbors memory",
	Run: func(cmd *cobra.Command, args []string) {
		ctlRun("memory")
	},
}

func ctlRun(req string) {
	res, err := core.CtlRequest(ctlPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach kevlar: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(res)
}

var ctlPath string

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.AddCommand(showStatsCmd)
	showCmd.AddCommand(showMemoryCmd)
	rootCmd.PersistentFlags().StringVar(&ctlPath, "ctl", state.DefaultCtlPath, "control socket of the running speaker")
}
