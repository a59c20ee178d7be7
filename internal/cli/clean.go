package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"gmxup/internal/config"
	"gmxup/internal/installer"
	"gmxup/internal/paths"
)

var cleanDryRun bool

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove gmxup's lines from the shell rc file",
		RunE:  runClean,
	}
	cmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "List what would be removed without editing the rc file")
	return cmd
}

type cleanResult struct {
	RCFile  string `json:"rc_file"`
	Removed int    `json:"removed"`
	DryRun  bool   `json:"dry_run"`
}

func runClean(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	rcPath := rcFileFlag
	if rcPath == "" {
		pp, err := paths.Resolve(workDir)
		if err != nil {
			return err
		}
		cfg, err := config.Load(pp.ConfigFile)
		if err != nil {
			return err
		}
		rcPath = cfg.Shell.RCFile
	}
	if rcPath == "" {
		var err error
		rcPath, err = installer.DefaultRCFile()
		if err != nil {
			return err
		}
	}

	result := cleanResult{RCFile: rcPath, DryRun: cleanDryRun}

	if cleanDryRun {
		matches, err := installer.MatchingSourceLines(rcPath)
		if err != nil {
			return err
		}
		result.Removed = len(matches)
		if !outputJSON {
			for _, line := range matches {
				fmt.Fprintf(out, "would remove: %s\n", line)
			}
		}
	} else {
		removed, err := installer.CleanSourceLines(rcPath)
		if err != nil {
			return err
		}
		result.Removed = removed
	}

	if outputJSON {
		return json.NewEncoder(out).Encode(result)
	}

	action := "removed"
	if cleanDryRun {
		action = "would remove"
	}
	fmt.Fprintf(out, "%s %d line(s) from %s\n", action, result.Removed, rcPath)
	return nil
}
