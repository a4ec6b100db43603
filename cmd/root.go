package cmd

import (
	"os"

	"github.com/encodeous/kevlar/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kevlar",
	Short: "Kevlar Authenticated Babel Speaker",
	Long: `Kevlar is a Babel speaker that authenticates its traffic.
Every packet leaving an authenticated interface carries a timestamp/packet counter and keyed digests; every packet arriving is checked for freshness and integrity before it is believed.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&state.ConfigPath, "config", "c", state.ConfigPath, "node configuration file")
}
