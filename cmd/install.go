package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-emutos-install/pkg/app"
	"github.com/deploymenttheory/go-emutos-install/pkg/app/install"
)

var (
	// Confirmation (install command only)
	installYes bool
)

var installCmd = &cobra.Command{
	Use:   "install [loader-image]",
	Short: "Install an EmuTOS loader image on drive C:",
	Long: `Install an EmuTOS loader image on drive C: of a hard disk.

The image is checked first and must be a valid EmuTOS loader. The installer
then copies it to C:\EMUTOS.SYS, writes an executable boot sector on C: and
patches the root sector of the disk. Variant b also marks the partition of
C: as bootable and clears the volume dirty flag.

Examples:
  # Install on a native disk image, asking for confirmation
  emutos-install install emutos.prg --disk hd0.img

  # Install with the variant a boot sector, without asking
  emutos-install install emutos.prg --disk hd0.img --variant a --yes

  # Keep drive C: in a host directory, as GEMDOS drive emulation does
  emutos-install install emutos.prg --disk hd0.img --drive-dir ./c_drive`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().String("variant", "b", "boot sector variant (a, b)")
	installCmd.Flags().String("boot-stub", "", "boot sector stub file (default bootsect.bin)")
	installCmd.Flags().String("root-stub", "", "root sector stub file (default root.bin)")
	installCmd.Flags().Int("chunk-size", 0, "copy chunk size in bytes (default 4096)")
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "install without asking for confirmation")

	bindFlags(installCmd, map[string]string{
		"variant":    "variant",
		"boot_stub":  "boot-stub",
		"root_stub":  "root-stub",
		"chunk_size": "chunk-size",
	}, false)
}

func runInstall(cmd *cobra.Command, imagePath string) error {
	// Create application context
	ctx := newContext(cmd)
	ctx.Confirm = promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
	if ctx.Verbose && !ctx.Quiet {
		ctx.SetProgress(func(message string, percent int) {
			fmt.Fprintf(ctx.Stderr, "[%3d%%] %s\n", percent, message)
		})
	}

	// Create installation request
	request := &install.Request{
		ImagePath:   imagePath,
		Target:      diskTarget(),
		Variant:     settings.Variant,
		BootStub:    settings.BootStub,
		RootStub:    settings.RootStub,
		Destination: settings.Destination,
		ChunkSize:   settings.ChunkSize,
		Yes:         installYes,
	}

	// Handle the request through application layer
	response, err := install.Handle(ctx, request)
	if response == nil {
		return err
	}

	// A failed installation still reports how far it got
	if ferr := install.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat); ferr != nil && err == nil {
		return ferr
	}
	if err != nil && len(response.Completed) > 0 {
		last := response.Completed[len(response.Completed)-1]
		ctx.Error(fmt.Sprintf("installation stopped after %s; nothing written so far was restored", last))
	}
	return err
}

// promptConfirm asks a y/N question on out and reads the answer from in.
func promptConfirm(in io.Reader, out io.Writer) func(string) (bool, error) {
	reader := bufio.NewReader(in)
	return func(prompt string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || answer == "") {
			if err == io.EOF {
				return false, app.NewError(app.ErrCodeInvalidInput, "no answer on standard input", nil)
			}
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
