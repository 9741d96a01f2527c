package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa/refine"
	"github.com/spf13/cobra"
)

// HistoryMain is wrapped by NewHistoryCommand and only exported for testing
// purposes.
var HistoryMain *refine.HistoryMain

// NewHistoryCommand returns a new cobra command wrapping HistoryMain.
func NewHistoryCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	HistoryMain = refine.NewHistoryMain()
	HistoryMain.Stdout = stdout
	historyCommand := &cobra.Command{
		Use:   "history",
		Short: "Print recorded run results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return HistoryMain.Run()
		},
	}
	err := commandeer.Flags(historyCommand.Flags(), HistoryMain)
	if err != nil {
		panic(err)
	}
	return historyCommand
}

func init() {
	subcommandFns["history"] = NewHistoryCommand
}
