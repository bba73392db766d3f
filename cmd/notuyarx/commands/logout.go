package commands

import (
	"log/slog"

	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clears credentials, session and state (keeps the language preference).",
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

		err = service.Logout(cmd.Context())
		if err != nil {
			serviceutil.Fatal("logout failed", err)
		}
		slog.Info("logged out")
	},
}
