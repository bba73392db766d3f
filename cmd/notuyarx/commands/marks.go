package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/mustafazeydani/NotUyarX/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(marksCmd)
}

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Prints the stored course list with exams and letter grades.",
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

		courses, ok, err := service.State().Courses(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read stored courses", err)
		}
		if !ok || len(courses) == 0 {
			fmt.Println("no stored courses, run `notuyarx check` first")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Course", "Exams", "Average", "Letter", "Status", "Credits"})
		for _, course := range courses {
			exams := make([]string, 0, len(course.Exams))
			for _, exam := range course.Exams {
				exams = append(exams, fmt.Sprintf("%s: %s", exam.Name, exam.Grade))
			}
			t.AppendRow(table.Row{
				course.Name,
				strings.Join(exams, ", "),
				course.Average,
				course.Letter,
				course.FinalStatus,
				course.Credits,
			})
		}
		t.Render()
	},
}
