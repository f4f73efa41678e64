package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-emutos-install/internal/config"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	configFile   string

	// settings is the effective configuration, loaded before any command runs
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "emutos-install",
	Short: "Install the EmuTOS loader on an Atari hard disk",
	Long: `emutos-install makes a FAT16 hard disk boot EmuTOS.

It copies the EmuTOS loader image to drive C: as EMUTOS.SYS, writes an
executable boot sector on C: and patches the root sector of the physical
disk so the boot ROM runs it. Disks are raw hard-disk images or block
devices, in native or word-swapped byte order.

Commands:
  locate      Check that a file is a usable EmuTOS loader image
  install     Install a loader image on drive C:
  inspect     Show the boot chain of a disk
  config      Print the effective configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper(), configFile)
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid configuration", err)
		}
		settings = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels an installation that has not started writing sectors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	// Global output control flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: emutos-install.yaml in ., ./config, $HOME/.emutos-install)")

	// Disk selection, shared by install and inspect
	rootCmd.PersistentFlags().String("disk", "", "hard-disk image or block device")
	rootCmd.PersistentFlags().String("byte-order", config.ByteOrderAuto, "disk byte order (auto, native, swapped)")
	rootCmd.PersistentFlags().Int("unit", 0, "physical unit of the disk (0-7)")
	rootCmd.PersistentFlags().String("drive-dir", "", "host directory standing in for drive C:")
	rootCmd.PersistentFlags().String("destination", "", "loader file name on drive C: (default EMUTOS.SYS)")

	bindFlags(rootCmd, map[string]string{
		"disk_image":  "disk",
		"byte_order":  "byte-order",
		"unit":        "unit",
		"drive_dir":   "drive-dir",
		"destination": "destination",
	}, true)

	// glog flags; its -v is taken by --verbose and becomes --log-level
	glogFlags := pflag.NewFlagSet("glog", pflag.ContinueOnError)
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		if pf.Name == "v" {
			pf.Name, pf.Shorthand = "log-level", ""
		}
		glogFlags.AddFlag(pf)
	})
	rootCmd.PersistentFlags().AddFlagSet(glogFlags)
}

// bindFlags binds configuration keys to the named flags of cmd.
func bindFlags(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// newContext creates the application context for a command run.
func newContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	ctx.OutputFormat = GetOutputFormat()
	ctx.Verbose = GetVerbose()
	ctx.Quiet = GetQuiet()
	ctx.Stderr = cmd.ErrOrStderr()
	return ctx
}

// diskTarget returns the disk selection from the effective configuration.
func diskTarget() app.DiskTarget {
	return app.DiskTarget{
		DiskPath:  settings.DiskImage,
		ByteOrder: settings.ByteOrder,
		Unit:      settings.Unit,
		DriveDir:  settings.DriveDir,
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var ce *app.CommonError
	if !errors.As(err, &ce) {
		return 1
	}
	switch ce.Code {
	case app.ErrCodeInvalidInput:
		return 2
	case app.ErrCodeFileAbsent, app.ErrCodeInvalidImage:
		return 3
	case app.ErrCodeCancelled:
		return 4
	default:
		return 1
	}
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
