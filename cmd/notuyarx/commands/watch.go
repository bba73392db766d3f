package commands

import (
	"log/slog"

	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls the portal on an interval until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		service, cleanup, err := openService(config, true)
		if err != nil {
			serviceutil.Fatal("failed to open service", err)
		}
		defer cleanup()

		err = service.StartPolling(cmd.Context(), config.IntervalMinutes)
		if err != nil {
			serviceutil.Fatal("failed to start polling", err)
		}
		slog.Info("polling started", "interval_minutes", config.IntervalMinutes)

		// run one cycle immediately instead of waiting a full interval
		service.Tick(cmd.Context())

		<-cmd.Context().Done()
		slog.Info("shutting down")
	},
}
