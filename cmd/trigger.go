package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bovespa/trigger"
	"github.com/spf13/cobra"
)

// TriggerMain is wrapped by NewTriggerCommand and only exported for testing
// purposes.
var TriggerMain *trigger.Main

// NewTriggerCommand returns a new cobra command wrapping TriggerMain.
func NewTriggerCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	TriggerMain = trigger.NewMain()
	TriggerMain.Stdin = stdin
	TriggerMain.Stdout = stdout
	triggerCommand := &cobra.Command{
		Use:   "trigger",
		Short: "Run a refine for one S3 event notification.",
		Long: `Reads an S3 event notification for a new raw object and runs a
refine with the object and its snapshot date as the trigger. Events
for keys outside --prefix and --suffix are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return TriggerMain.Run()
		},
	}
	err := commandeer.Flags(triggerCommand.Flags(), TriggerMain)
	if err != nil {
		panic(err)
	}
	return triggerCommand
}

// ListenMain is wrapped by NewListenCommand and only exported for testing
// purposes.
var ListenMain *trigger.ListenMain

// NewListenCommand returns a new cobra command wrapping ListenMain.
func NewListenCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ListenMain = trigger.NewListenMain()
	ListenMain.Stdout = stdout
	listenCommand := &cobra.Command{
		Use:   "listen",
		Short: "Run a refine for every S3 event notification read from Kafka.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ListenMain.Run()
		},
	}
	err := commandeer.Flags(listenCommand.Flags(), ListenMain)
	if err != nil {
		panic(err)
	}
	return listenCommand
}

func init() {
	subcommandFns["trigger"] = NewTriggerCommand
	subcommandFns["listen"] = NewListenCommand
}
