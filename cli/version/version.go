package cliversion

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambridge-relay/relayer/version"
)

func GetVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Returns the current relayer version",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}
}

func runCommand(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "commit=%s branch=%s buildTime=%s\n",
		version.Commit, version.Branch, version.BuildTime)
}
