package cmd

import (
	"context"
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/refine"
	"github.com/spf13/cobra"
)

// RefineMain is wrapped by NewRefineCommand and only exported for testing
// purposes.
var RefineMain *refine.Main

// NewRefineCommand returns a new cobra command wrapping RefineMain.
func NewRefineCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	RefineMain = refine.NewMain()
	RefineMain.Stdout = stdout
	var o bovespa.Override
	refineCommand := &cobra.Command{
		Use:   "refine",
		Short: "Refine the full raw history into today's partition and register it.",
		Long: `Reads every raw snapshot, normalizes and enriches the records,
publishes them as the partition for today's processing date, and
upserts the catalog table to point at it. The run's result is printed
as JSON and recorded in the ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer RefineMain.Close()
			_, err := RefineMain.Refine(context.Background(), o)
			return err
		},
	}
	flags := refineCommand.Flags()
	err := commandeer.Flags(flags, RefineMain)
	if err != nil {
		panic(err)
	}
	flags.StringVar(&o.RawPath, "raw-path", "", "Raw object which triggered this run. Logged and recorded only; the full history is always read.")
	flags.StringVar(&o.PartitionDate, "partition-date", "", "Snapshot date of the triggering raw object.")
	return refineCommand
}

func init() {
	subcommandFns["refine"] = NewRefineCommand
}
