// Command leadintake runs the lead intake service and its maintenance
// tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "leadintake",
		Short:         "Lead intake service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newCreateUserCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
