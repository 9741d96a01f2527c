package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa/http"
	"github.com/spf13/cobra"
)

// ServeMain is wrapped by NewServeCommand and only exported for testing
// purposes.
var ServeMain *http.Main

// NewServeCommand returns a new cobra command wrapping ServeMain.
func NewServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ServeMain = http.NewMain()
	ServeMain.Stdout = stdout
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run a refine for every S3 event notification posted over HTTP.",
		Long: `Listens for S3 event notifications posted to /events, either
directly or wrapped by an SNS HTTP subscription, and runs a refine for
each one. The response carries the run's result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ServeMain.Run()
		},
	}
	err := commandeer.Flags(serveCommand.Flags(), ServeMain)
	if err != nil {
		panic(err)
	}
	return serveCommand
}

func init() {
	subcommandFns["serve"] = NewServeCommand
}
