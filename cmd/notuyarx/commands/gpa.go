package commands

import (
	"fmt"

	"github.com/mustafazeydani/NotUyarX/lib/gpa"
	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(gpaCmd)
}

var gpaCmd = &cobra.Command{
	Use:   "gpa",
	Short: "Prints the cumulative and current-term grade point averages.",
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

		info, ok, err := service.State().GPAInfo(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read stored gpa info", err)
		}
		if !ok {
			fmt.Println("no stored gpa info, run `notuyarx check` first")
			return
		}
		courses, _, err := service.State().Courses(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read stored courses", err)
		}

		fmt.Printf("CGPA: %.2f\n", gpa.Cumulative(info))
		fmt.Printf("Term GPA: %.2f\n", gpa.Term(courses, info, nil))
	},
}
