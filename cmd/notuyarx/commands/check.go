package commands

import (
	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs a single poll cycle right now.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		service, cleanup, err := openService(config, false)
		if err != nil {
			serviceutil.Fatal("failed to open service", err)
		}
		defer cleanup()

		service.Tick(cmd.Context())
	},
}
