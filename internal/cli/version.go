package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printResult(cmd.OutOrStdout(), opts.output, map[string]any{
				"version":    Version,
				"commit":     GitCommit,
				"go_version": runtime.Version(),
			})
		},
	}
}
