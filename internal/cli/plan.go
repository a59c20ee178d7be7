package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gmxup/internal/buildplan"
	"gmxup/internal/config"
	"gmxup/internal/deps"
	"gmxup/internal/paths"
	"gmxup/internal/reconcile"
	"gmxup/internal/sysprobe"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <version>",
		Short: "Show the decisions an install would make, without executing",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
}

type planResult struct {
	Version        string   `json:"version"`
	Installed      string   `json:"installed,omitempty"`
	Decision       string   `json:"decision"`
	MissingTools   []string `json:"missing_tools,omitempty"`
	InstallCommand string   `json:"install_command,omitempty"`
	FFTWVerdict    string   `json:"fftw_verdict"`
	BuildFlags     []string `json:"build_flags"`
	SourceURL      string   `json:"source_url"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	version := args[0]
	out := cmd.OutOrStdout()

	pp, err := paths.Resolve(workDir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return err
	}
	env := sysprobe.Probe(cmd.Context())

	res := planResult{
		Version:   version,
		Installed: env.InstalledVersion,
		Decision:  reconcile.Reconcile(env.InstalledVersion, version).String(),
		SourceURL: cfg.SourceURL(version),
	}

	res.MissingTools = env.MissingTools(sysprobe.RequiredTools)
	installCmd, depsErr := deps.Resolve(env, sysprobe.RequiredTools)
	if depsErr != nil {
		res.InstallCommand = fmt.Sprintf("unavailable: %v", depsErr)
	} else if !installCmd.Empty() {
		res.InstallCommand = strings.Join(installCmd.CommandLine(), " ")
	}

	initial := buildplan.ComposeInitial(env.FFTW)
	res.FFTWVerdict = initial.String()
	// The plan command cannot attempt the FFTW install, so render the flags
	// for the optimistic outcome; a failed attempt at install time swaps in
	// GMX_BUILD_OWN_FFTW=ON.
	plan := buildplan.Resolve(initial, true, buildplan.Options{
		Prefix:    cfg.Install.Prefix,
		BuildType: cfg.Build.BuildType,
	})
	for _, flag := range plan.Flags {
		res.BuildFlags = append(res.BuildFlags, flag.String())
	}

	if outputJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Requested:    %s\n", res.Version)
	fmt.Fprintf(out, "Installed:    %s\n", nonEmptyOrDash(res.Installed))
	fmt.Fprintf(out, "Decision:     %s\n", res.Decision)
	fmt.Fprintf(out, "Source:       %s\n", res.SourceURL)
	if len(res.MissingTools) > 0 {
		fmt.Fprintf(out, "Missing:      %s\n", strings.Join(res.MissingTools, ", "))
	}
	if res.InstallCommand != "" {
		fmt.Fprintf(out, "Installer:    %s\n", res.InstallCommand)
	}
	fmt.Fprintf(out, "FFTW:         %s\n", res.FFTWVerdict)
	fmt.Fprintf(out, "Build flags:  %s\n", strings.Join(res.BuildFlags, " "))
	return nil
}
