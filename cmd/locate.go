package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-emutos-install/pkg/app/locate"
)

var locateCmd = &cobra.Command{
	Use:   "locate [loader-image]",
	Short: "Check that a file is a usable EmuTOS loader image",
	Long: `Classify a file as an EmuTOS loader image.

A valid image is an executable program of at least 120000 bytes carrying the
ETOS tag in its first 4096 bytes. Only a valid image can be installed; the
command exits non-zero otherwise.

Examples:
  # Check the loader image from a release archive
  emutos-install locate emutos-prg/emutos.prg

  # Report as JSON
  emutos-install locate emutos.prg -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, imagePath string) error {
	ctx := newContext(cmd)

	response, err := locate.Handle(ctx, &locate.Request{ImagePath: imagePath})
	if err != nil {
		return err
	}

	if err := locate.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat); err != nil {
		return err
	}
	return response.Err()
}
