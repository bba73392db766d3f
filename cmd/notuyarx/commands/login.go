package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/spf13/cobra"
)

var loginPassword *string

func init() {
	loginPassword = loginCmd.Flags().String("password", "", "The portal password. Read from stdin when omitted.")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <student id>",
	Short: "Signs in to the portal and stores the first course baseline.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if config.University == "" {
			serviceutil.Fatal("no university configured", fmt.Errorf("set \"university\" in notuyarx.json5"))
		}

		password := *loginPassword
		if password == "" {
			fmt.Fprint(os.Stderr, "password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				serviceutil.Fatal("failed to read password", err)
			}
			password = strings.TrimSpace(line)
		}

		service, cleanup, err := openService(config, false)
		if err != nil {
			serviceutil.Fatal("failed to open service", err)
		}
		defer cleanup()

		err = service.Register(cmd.Context(), config.University, args[0], password)
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}
		slog.Info("signed in, baseline stored", "student_id", args[0])
	},
}
