package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gmxup/internal/config"
)

var (
	workDir    string
	rcFileFlag string
	outputJSON bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmxup",
		Short: "GROMACS source installer for Linux",
	}

	cmd.PersistentFlags().StringVar(&workDir, "workdir", "", "Path to the gmxup working directory (default ~/.gmxup)")
	cmd.PersistentFlags().StringVar(&rcFileFlag, "rc-file", "", "Shell rc file to wire the install into (default ~/.bashrc)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newCleanCmd())

	return cmd
}

// rcFilePath resolves the shell rc file: the --rc-file flag wins, then the
// configured shell.rc_file. An empty result defers to ~/.bashrc downstream.
func rcFilePath(cfg config.Config) string {
	if rcFileFlag != "" {
		return rcFileFlag
	}
	return cfg.Shell.RCFile
}
