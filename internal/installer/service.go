package installer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gmxup/internal/buildplan"
	"gmxup/internal/config"
	"gmxup/internal/deps"
	"gmxup/internal/patch"
	"gmxup/internal/paths"
	"gmxup/internal/reconcile"
	"gmxup/internal/sysprobe"
)

// Stage identifies one step of the install pipeline.
type Stage string

const (
	StageTools       Stage = "tools"
	StageCompiler    Stage = "compiler"
	StageReconcile   Stage = "reconcile"
	StageFFTW        Stage = "fftw"
	StageDownload    Stage = "download"
	StageExtract     Stage = "extract"
	StagePatch       Stage = "patch"
	StageConfigure   Stage = "configure"
	StageBuild       Stage = "build"
	StageTest        Stage = "test"
	StageInstall     Stage = "install"
	StageEnvironment Stage = "environment"
)

// Stages lists every pipeline stage in execution order.
var Stages = []Stage{
	StageTools, StageCompiler, StageReconcile, StageFFTW,
	StageDownload, StageExtract, StagePatch, StageConfigure,
	StageBuild, StageTest, StageInstall, StageEnvironment,
}

// maxBuildJobs caps build parallelism regardless of detected core count.
const maxBuildJobs = 4

// Reporter receives stage lifecycle events as the pipeline progresses.
type Reporter interface {
	Start(stage Stage)
	Complete(stage Stage, note string)
	Skip(stage Stage, note string)
	Fail(stage Stage, err error)
}

type nopReporter struct{}

func (nopReporter) Start(Stage)            {}
func (nopReporter) Complete(Stage, string) {}
func (nopReporter) Skip(Stage, string)     {}
func (nopReporter) Fail(Stage, error)      {}

// Service drives one install of a requested GROMACS version. The decision
// layer (reconcile, deps, patch, buildplan) stays pure; every effect flows
// through Runner or the filesystem helpers here, so preview mode can render
// the effects instead of performing them.
type Service struct {
	Config   config.Config
	Paths    paths.WorkPaths
	Env      sysprobe.Environment
	Runner   Runner
	Logger   *log.Logger
	Reporter Reporter
	RCFile   string
	Preview  bool
	Out      io.Writer
}

// Result summarizes what the pipeline decided and did.
type Result struct {
	Decision     reconcile.Decision
	Plan         buildplan.Plan
	Skipped      bool
	PatchedFiles int
	RCLineAdded  bool
}

// Run executes the full pipeline for the requested version. In preview mode
// every effectful step is rendered to Out and nothing is executed.
func (s *Service) Run(ctx context.Context, version string) (Result, error) {
	if s.Reporter == nil {
		s.Reporter = nopReporter{}
	}
	if s.Out == nil {
		s.Out = io.Discard
	}
	var res Result

	if !s.Preview {
		if err := s.Paths.EnsureDirs(); err != nil {
			return res, err
		}
	}

	if err := s.ensureTools(ctx); err != nil {
		return res, err
	}
	if err := s.checkCompiler(ctx); err != nil {
		return res, err
	}

	res.Decision = reconcile.Reconcile(s.Env.InstalledVersion, version)
	s.Reporter.Start(StageReconcile)
	switch res.Decision {
	case reconcile.Skip:
		note := fmt.Sprintf("version %s already installed", s.Env.InstalledVersion)
		s.logf("reconcile: %s", note)
		s.Reporter.Skip(StageReconcile, note)
		res.Skipped = true
		return res, nil
	case reconcile.ReplaceThenInstall:
		s.logf("reconcile: replacing installed %s with %s", s.Env.InstalledVersion, version)
		if err := s.removeInstalled(ctx); err != nil {
			s.Reporter.Fail(StageReconcile, err)
			return res, err
		}
		s.Reporter.Complete(StageReconcile, "existing install removed")
	default:
		s.logf("reconcile: clean install of %s", version)
		s.Reporter.Complete(StageReconcile, "clean install")
	}

	res.Plan = s.resolveBuildPlan(ctx)

	srcDir, err := s.fetchSource(ctx, version)
	if err != nil {
		return res, err
	}

	res.PatchedFiles, err = s.patchSource(srcDir)
	if err != nil {
		return res, err
	}

	buildDir, err := s.configure(ctx, srcDir, res.Plan)
	if err != nil {
		return res, err
	}
	if err := s.build(ctx, buildDir); err != nil {
		return res, err
	}
	if err := s.test(ctx, buildDir); err != nil {
		return res, err
	}
	if err := s.install(ctx, buildDir); err != nil {
		return res, err
	}

	res.RCLineAdded, err = s.configureEnvironment()
	if err != nil {
		return res, err
	}
	return res, nil
}

// ensureTools installs any missing build prerequisites via the detected
// package manager. Missing tools with no recognized manager is fatal.
func (s *Service) ensureTools(ctx context.Context) error {
	s.Reporter.Start(StageTools)

	cmd, err := deps.Resolve(s.Env, sysprobe.RequiredTools)
	if err != nil {
		missing := s.Env.MissingTools(sysprobe.RequiredTools)
		uerr := &UnsupportedEnvironmentError{Missing: missing}
		if s.Preview {
			s.preview("unavailable: %v", uerr)
			s.Reporter.Complete(StageTools, "preview")
			return nil
		}
		s.Reporter.Fail(StageTools, uerr)
		return uerr
	}
	if cmd.Empty() {
		s.Reporter.Complete(StageTools, "all prerequisites present")
		return nil
	}

	s.logf("installing prerequisites: %s", strings.Join(cmd.Packages, " "))
	if err := s.runStep(ctx, StageTools, s.privileged(cmd.CommandLine()), ""); err != nil {
		derr := &DependencyInstallError{Command: strings.Join(cmd.CommandLine(), " "), Err: err}
		s.Reporter.Fail(StageTools, derr)
		return derr
	}
	s.Reporter.Complete(StageTools, fmt.Sprintf("installed %s", strings.Join(cmd.Packages, ", ")))
	return nil
}

func (s *Service) checkCompiler(ctx context.Context) error {
	s.Reporter.Start(StageCompiler)
	if s.Preview {
		s.preview("run: g++ --version")
		s.Reporter.Complete(StageCompiler, "preview")
		return nil
	}
	result, err := s.Runner.Run(ctx, "g++", []string{"--version"}, RunOptions{})
	if err != nil {
		s.Reporter.Fail(StageCompiler, err)
		return fmt.Errorf("C++ compiler check: %w", err)
	}
	line := firstLine(strings.TrimSpace(string(result.Stdout)))
	s.logf("compiler: %s", line)
	s.Reporter.Complete(StageCompiler, line)
	return nil
}

func (s *Service) removeInstalled(ctx context.Context) error {
	prefix := s.Config.Install.Prefix
	return s.runStep(ctx, StageReconcile, s.privileged([]string{"rm", "-rf", prefix}), "")
}

// resolveBuildPlan performs the two-phase FFTW linkage decision: the pure
// initial verdict, an optional effectful package install attempt, then the
// final plan. A failed attempt degrades to building GROMACS's own FFTW with
// a warning rather than aborting.
func (s *Service) resolveBuildPlan(ctx context.Context) buildplan.Plan {
	s.Reporter.Start(StageFFTW)
	opts := buildplan.Options{
		Prefix:    s.Config.Install.Prefix,
		BuildType: s.Config.Build.BuildType,
	}

	initial := buildplan.ComposeInitial(s.Env.FFTW)
	if initial == buildplan.UseSystem {
		plan := buildplan.Resolve(initial, true, opts)
		s.Reporter.Complete(StageFFTW, "system FFTW complete")
		return plan
	}

	installOK := false
	cmd, err := deps.ResolveFFTW(s.Env)
	if err == nil {
		runErr := s.runStep(ctx, StageFFTW, s.privileged(cmd.CommandLine()), "")
		if runErr == nil {
			installOK = true
		} else {
			derr := &DependencyInstallError{Command: strings.Join(cmd.CommandLine(), " "), Err: runErr}
			s.logf("warning: %v; falling back to bundled FFTW", derr)
		}
	} else {
		s.logf("warning: %v; falling back to bundled FFTW", err)
	}

	plan := buildplan.Resolve(initial, installOK, opts)
	if plan.Linkage == buildplan.LinkOwn {
		s.Reporter.Complete(StageFFTW, "building bundled FFTW")
	} else {
		s.Reporter.Complete(StageFFTW, "installed system FFTW")
	}
	return plan
}

// fetchSource downloads and unpacks the release tarball, returning the
// extracted source root.
func (s *Service) fetchSource(ctx context.Context, version string) (string, error) {
	sourceURL := s.Config.SourceURL(version)
	name, err := archiveFileName(sourceURL)
	if err != nil {
		s.Reporter.Fail(StageDownload, err)
		return "", err
	}
	archivePath := filepath.Join(s.Paths.DownloadsDir, name)
	extractDir := filepath.Join(s.Paths.SrcDir, "gromacs-"+version)

	s.Reporter.Start(StageDownload)
	if s.Preview {
		s.preview("download: %s -> %s", sourceURL, archivePath)
		s.Reporter.Complete(StageDownload, "preview")
	} else {
		s.logf("downloading %s", sourceURL)
		if err := downloadArchive(ctx, archivePath, sourceURL); err != nil {
			s.Reporter.Fail(StageDownload, err)
			return "", err
		}
		s.Reporter.Complete(StageDownload, name)
	}

	s.Reporter.Start(StageExtract)
	if s.Preview {
		s.preview("extract: %s -> %s", archivePath, extractDir)
		s.Reporter.Complete(StageExtract, "preview")
		return extractDir, nil
	}
	s.logf("extracting %s", archivePath)
	if err := extractTarGz(archivePath, extractDir); err != nil {
		s.Reporter.Fail(StageExtract, err)
		return "", err
	}
	root, err := sourceRoot(extractDir)
	if err != nil {
		s.Reporter.Fail(StageExtract, err)
		return "", err
	}
	s.Reporter.Complete(StageExtract, root)
	return root, nil
}

// patchSource scans the tree for files missing <cstdint> and applies the
// corrective include to each, backups first.
func (s *Service) patchSource(srcDir string) (int, error) {
	s.Reporter.Start(StagePatch)
	if s.Preview {
		s.preview("patch: scan %s for missing <cstdint> includes", srcDir)
		s.Reporter.Complete(StagePatch, "preview")
		return 0, nil
	}

	candidates, err := patch.Scan(srcDir)
	if err != nil {
		s.Reporter.Fail(StagePatch, err)
		return 0, fmt.Errorf("scan sources: %w", err)
	}
	positive := patch.Positive(candidates)
	for _, c := range positive {
		s.logf("patching %s", c.Path)
		if err := patch.Apply(c); err != nil {
			s.Reporter.Fail(StagePatch, err)
			return 0, err
		}
	}
	s.Reporter.Complete(StagePatch, fmt.Sprintf("%d files patched", len(positive)))
	return len(positive), nil
}

func (s *Service) configure(ctx context.Context, srcDir string, plan buildplan.Plan) (string, error) {
	s.Reporter.Start(StageConfigure)
	buildDir := filepath.Join(srcDir, "build")
	if !s.Preview {
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			s.Reporter.Fail(StageConfigure, err)
			return "", fmt.Errorf("create build dir: %w", err)
		}
	}

	argv := append([]string{"cmake"}, plan.ConfigureArgs("..")...)
	if err := s.runStep(ctx, StageConfigure, argv, buildDir); err != nil {
		s.Reporter.Fail(StageConfigure, err)
		return "", fmt.Errorf("configure: %w", err)
	}
	s.Reporter.Complete(StageConfigure, "")
	return buildDir, nil
}

// build invokes make with capped parallelism and retries exactly once at
// -j1 before giving up.
func (s *Service) build(ctx context.Context, buildDir string) error {
	s.Reporter.Start(StageBuild)
	jobs := s.buildJobs()

	err := s.runStep(ctx, StageBuild, []string{"make", fmt.Sprintf("-j%d", jobs)}, buildDir)
	if err == nil {
		s.Reporter.Complete(StageBuild, fmt.Sprintf("-j%d", jobs))
		return nil
	}

	s.logf("build failed at -j%d, retrying at -j1: %v", jobs, err)
	err = s.runStep(ctx, StageBuild, []string{"make", "-j1"}, buildDir)
	if err == nil {
		s.Reporter.Complete(StageBuild, "-j1 retry")
		return nil
	}
	berr := &BuildFailureError{Attempts: 2, Err: err}
	s.Reporter.Fail(StageBuild, berr)
	return berr
}

func (s *Service) test(ctx context.Context, buildDir string) error {
	s.Reporter.Start(StageTest)
	if err := s.runStep(ctx, StageTest, []string{"make", "check"}, buildDir); err != nil {
		s.Reporter.Fail(StageTest, err)
		return fmt.Errorf("regression tests: %w", err)
	}
	s.Reporter.Complete(StageTest, "")
	return nil
}

func (s *Service) install(ctx context.Context, buildDir string) error {
	s.Reporter.Start(StageInstall)
	if err := s.runStep(ctx, StageInstall, s.privileged([]string{"make", "install"}), buildDir); err != nil {
		s.Reporter.Fail(StageInstall, err)
		return fmt.Errorf("install: %w", err)
	}
	if !s.Preview {
		marker := filepath.Join(s.Config.Install.Prefix, "bin", "GMXRC")
		ok, err := paths.FileExists(marker)
		if err != nil || !ok {
			perr := &PostconditionError{Marker: marker}
			s.Reporter.Fail(StageInstall, perr)
			return perr
		}
	}
	s.Reporter.Complete(StageInstall, "")
	return nil
}

func (s *Service) configureEnvironment() (bool, error) {
	s.Reporter.Start(StageEnvironment)
	rcPath := s.RCFile
	if rcPath == "" {
		var err error
		rcPath, err = DefaultRCFile()
		if err != nil {
			s.Reporter.Fail(StageEnvironment, err)
			return false, err
		}
	}

	if s.Preview {
		s.preview("append to %s: %s", rcPath, SourceLine(s.Config.Install.Prefix))
		s.Reporter.Complete(StageEnvironment, "preview")
		return false, nil
	}

	added, err := EnsureSourceLine(rcPath, s.Config.Install.Prefix)
	if err != nil {
		s.Reporter.Fail(StageEnvironment, err)
		return false, err
	}
	if added {
		s.logf("added GMXRC source line to %s", rcPath)
		s.Reporter.Complete(StageEnvironment, "rc line added")
	} else {
		s.Reporter.Complete(StageEnvironment, "rc line already present")
	}
	return added, nil
}

// runStep executes one external command with its output teed into a
// per-stage log file. In preview mode the command is rendered instead.
func (s *Service) runStep(ctx context.Context, stage Stage, argv []string, dir string) error {
	if s.Preview {
		if dir != "" {
			s.preview("run (in %s): %s", dir, strings.Join(argv, " "))
		} else {
			s.preview("run: %s", strings.Join(argv, " "))
		}
		return nil
	}

	logPath := filepath.Join(s.Paths.LogsDir, string(stage)+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s log: %w", stage, err)
	}
	defer logFile.Close()

	s.logf("%s: %s", stage, strings.Join(argv, " "))
	_, err = s.Runner.Run(ctx, argv[0], argv[1:], RunOptions{
		Dir:    dir,
		Stdout: logFile,
		Stderr: logFile,
	})
	if err != nil {
		return fmt.Errorf("%s: %w (see %s)", strings.Join(argv, " "), err, logPath)
	}
	return nil
}

// privileged prepends sudo for non-root users when sudo is available.
func (s *Service) privileged(argv []string) []string {
	if os.Geteuid() == 0 {
		return argv
	}
	if _, err := exec.LookPath("sudo"); err != nil {
		return argv
	}
	return append([]string{"sudo"}, argv...)
}

func (s *Service) buildJobs() int {
	jobs := runtime.NumCPU()
	if jobs > maxBuildJobs {
		jobs = maxBuildJobs
	}
	if s.Config.Build.MaxJobs > 0 && jobs > s.Config.Build.MaxJobs {
		jobs = s.Config.Build.MaxJobs
	}
	if jobs < 1 {
		jobs = 1
	}
	return jobs
}

func (s *Service) preview(format string, args ...interface{}) {
	fmt.Fprintf(s.Out, "preview: "+format+"\n", args...)
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
