package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  `Display the version and commit hash`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())
			out.Printf("%s version %s\n", AppName, version.Version)
			out.Printf("Commit: %s\n", version.Commit)
			return nil
		},
	}
}
