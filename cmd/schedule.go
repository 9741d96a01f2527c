package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa/schedule"
	"github.com/spf13/cobra"
)

// ScheduleMain is wrapped by NewScheduleCommand and only exported for testing
// purposes.
var ScheduleMain *schedule.Main

// NewScheduleCommand returns a new cobra command wrapping ScheduleMain.
func NewScheduleCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ScheduleMain = schedule.NewMain()
	ScheduleMain.Stdout = stdout
	scheduleCommand := &cobra.Command{
		Use:   "schedule",
		Short: "Extract and refine once a day until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ScheduleMain.Run()
		},
	}
	err := commandeer.Flags(scheduleCommand.Flags(), ScheduleMain)
	if err != nil {
		panic(err)
	}
	return scheduleCommand
}

func init() {
	subcommandFns["schedule"] = NewScheduleCommand
}
