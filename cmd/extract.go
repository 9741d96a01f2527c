package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa/extract"
	"github.com/spf13/cobra"
)

// ExtractMain is wrapped by NewExtractCommand and only exported for testing
// purposes.
var ExtractMain *extract.Main

// NewExtractCommand returns a new cobra command wrapping ExtractMain.
func NewExtractCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ExtractMain = extract.NewMain()
	ExtractMain.Stdout = stdout
	extractCommand := &cobra.Command{
		Use:   "extract",
		Short: "Download today's index composition into a raw snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ExtractMain.Run()
		},
	}
	err := commandeer.Flags(extractCommand.Flags(), ExtractMain)
	if err != nil {
		panic(err)
	}
	return extractCommand
}

func init() {
	subcommandFns["extract"] = NewExtractCommand
}
