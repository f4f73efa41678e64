package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-emutos-install/pkg/app/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the boot chain of a disk",
	Long: `Show the boot chain of a disk without changing it.

Reports the byte order, the partition table of the root sector with its
active flags, whether the root sector and the boot sector of C: are
executable, and whether the loader file is present on C:.

Examples:
  # Inspect a disk image
  emutos-install inspect --disk hd0.img

  # Inspect a word-swapped image as YAML
  emutos-install inspect --disk hd0.img --byte-order swapped -o yaml`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command) error {
	ctx := newContext(cmd)

	response, err := inspect.Handle(ctx, &inspect.Request{
		Target:      diskTarget(),
		Destination: settings.Destination,
	})
	if err != nil {
		return err
	}

	return inspect.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
