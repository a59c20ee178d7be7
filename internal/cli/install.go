package cli

import (
	"encoding/json"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gmxup/internal/buildplan"
	"gmxup/internal/config"
	"gmxup/internal/installer"
	"gmxup/internal/logx"
	"gmxup/internal/paths"
	"gmxup/internal/sysprobe"
	"gmxup/internal/tui"
)

var (
	installPreview    bool
	installNoProgress bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Download, build, and install the requested GROMACS version",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstall,
	}
	cmd.Flags().BoolVar(&installPreview, "preview", false, "Render every planned step without executing anything")
	cmd.Flags().BoolVar(&installNoProgress, "no-progress", false, "Disable the interactive progress display")
	return cmd
}

var stageLabels = map[installer.Stage]string{
	installer.StageTools:       "Prerequisites",
	installer.StageCompiler:    "Compiler",
	installer.StageReconcile:   "Version",
	installer.StageFFTW:        "FFTW",
	installer.StageDownload:    "Download",
	installer.StageExtract:     "Extract",
	installer.StagePatch:       "Patch",
	installer.StageConfigure:   "Configure",
	installer.StageBuild:       "Build",
	installer.StageTest:        "Test",
	installer.StageInstall:     "Install",
	installer.StageEnvironment: "Environment",
}

type installResult struct {
	Version      string `json:"version"`
	Decision     string `json:"decision"`
	Skipped      bool   `json:"skipped"`
	FFTWLinkage  string `json:"fftw_linkage,omitempty"`
	PatchedFiles int    `json:"patched_files"`
	RCLineAdded  bool   `json:"rc_line_added"`
}

func runInstall(cmd *cobra.Command, args []string) error {
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

	svc := &installer.Service{
		Config: cfg,
		Paths:  pp,
		Env:    env,
		Runner: installer.CmdRunner{},
		RCFile: rcFilePath(cfg),
	}

	if installPreview {
		svc.Preview = true
		svc.Out = out
		res, err := svc.Run(cmd.Context(), version)
		if err != nil {
			return err
		}
		return writeInstallResult(out, version, cfg.Install.Prefix, res)
	}

	if err := pp.EnsureDirs(); err != nil {
		return err
	}
	// Seed the config file on first run so users have something to edit.
	if ok, ferr := paths.FileExists(pp.ConfigFile); ferr == nil && !ok {
		if err := config.Save(pp.ConfigFile, cfg); err != nil {
			return err
		}
	}
	logger, closer, err := logx.New(pp)
	if err != nil {
		return err
	}
	defer closer.Close()
	svc.Logger = logger

	mode := tui.DetectMode(out, installNoProgress, outputJSON)
	if mode != tui.ModeTUI {
		if mode == tui.ModePlain {
			svc.Reporter = &lineReporter{out: out}
		}
		res, runErr := svc.Run(cmd.Context(), version)
		if runErr != nil {
			return runErr
		}
		return writeInstallResult(out, version, cfg.Install.Prefix, res)
	}

	model := tui.NewStageModel(fmt.Sprintf("INSTALL gromacs-%s", version), []tui.Column{
		{Header: "STAGE", Width: 14},
		{Header: "STATUS", Width: 8},
		{Header: "NOTE", Width: 48},
	})
	for _, stage := range installer.Stages {
		model.AddRow(string(stage), []string{stageLabels[stage], "pending", ""})
	}

	var (
		res    installer.Result
		runErr error
	)
	err = tui.RunWithWork(out, model, func(send func(tea.Msg)) {
		svc.Reporter = &stageReporter{send: send}
		res, runErr = svc.Run(cmd.Context(), version)
		if runErr != nil {
			send(tui.ErrorMsg{Err: runErr})
		}
	})
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return writeInstallResult(out, version, cfg.Install.Prefix, res)
}

func writeInstallResult(out io.Writer, version, prefix string, res installer.Result) error {
	if outputJSON {
		payload := installResult{
			Version:      version,
			Decision:     res.Decision.String(),
			Skipped:      res.Skipped,
			PatchedFiles: res.PatchedFiles,
			RCLineAdded:  res.RCLineAdded,
		}
		if !res.Skipped {
			payload.FFTWLinkage = linkageLabel(res.Plan.Linkage)
		}
		return json.NewEncoder(out).Encode(payload)
	}

	if res.Skipped {
		fmt.Fprintf(out, "GROMACS %s already installed; nothing to do.\n", version)
		return nil
	}
	if installPreview {
		fmt.Fprintf(out, "\nPreview complete; no changes were made.\n")
		return nil
	}
	fmt.Fprintf(out, "\nGROMACS %s installed to %s.\n", version, prefix)
	fmt.Fprintln(out, "Open a new shell (or source your rc file) to pick up GMXRC.")
	return nil
}

func linkageLabel(l buildplan.Linkage) string {
	if l == buildplan.LinkOwn {
		return "own"
	}
	return "system"
}

// stageReporter adapts pipeline events to bubbletea messages.
type stageReporter struct {
	send func(tea.Msg)
}

func (r *stageReporter) Start(stage installer.Stage) {
	r.send(tui.StageUpdateMsg{Key: string(stage), Fields: map[string]string{"STATUS": "running"}})
}

func (r *stageReporter) Complete(stage installer.Stage, note string) {
	r.send(tui.StageUpdateMsg{Key: string(stage), Fields: map[string]string{
		"STATUS": "done",
		"NOTE":   note,
	}})
}

func (r *stageReporter) Skip(stage installer.Stage, note string) {
	r.send(tui.StageUpdateMsg{Key: string(stage), Fields: map[string]string{
		"STATUS": "skipped",
		"NOTE":   note,
	}})
}

func (r *stageReporter) Fail(stage installer.Stage, err error) {
	r.send(tui.StageUpdateMsg{Key: string(stage), Fields: map[string]string{
		"STATUS": "failed",
		"NOTE":   err.Error(),
	}})
}

// lineReporter prints one line per stage event for non-interactive output.
type lineReporter struct {
	out io.Writer
}

func (r *lineReporter) Start(stage installer.Stage) {}

func (r *lineReporter) Complete(stage installer.Stage, note string) {
	fmt.Fprintf(r.out, "%-14s done  %s\n", stageLabels[stage], note)
}

func (r *lineReporter) Skip(stage installer.Stage, note string) {
	fmt.Fprintf(r.out, "%-14s skip  %s\n", stageLabels[stage], note)
}

func (r *lineReporter) Fail(stage installer.Stage, err error) {
	fmt.Fprintf(r.out, "%-14s fail  %v\n", stageLabels[stage], err)
}
