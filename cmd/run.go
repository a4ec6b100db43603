package cmd

import (
	"log/slog"

	"github.com/encodeous/kevlar/core"
	"github.com/encodeous/kevlar/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run kevlar",
	Long:  `This will run kevlar on the current host. Ensure it has enough permissions to bind the Babel port and join multicast groups.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := core.ReadConfig(state.ConfigPath)
		if err != nil {
			panic(err)
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		err = core.Start(*cfg, level)
		if err != nil {
			panic(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().BoolVarP(&state.DBG_log_auth, "lauth", "a", false, "Write authentication decisions to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_speaker, "lspeaker", "s", false, "Write received and dropped packets to console")
}
