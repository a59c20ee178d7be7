package installer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gmxup/internal/buildplan"
	"gmxup/internal/config"
	"gmxup/internal/paths"
	"gmxup/internal/reconcile"
	"gmxup/internal/sysprobe"
)

// fakeRunner records invocations and lets tests hook individual commands.
type fakeRunner struct {
	calls []string
	onRun func(command string, args []string) error
}

func (r *fakeRunner) Run(_ context.Context, command string, args []string, _ RunOptions) (RunResult, error) {
	line := strings.Join(append([]string{command}, args...), " ")
	r.calls = append(r.calls, line)
	if r.onRun != nil {
		if err := r.onRun(command, args); err != nil {
			return RunResult{}, err
		}
	}
	return RunResult{Stdout: []byte("ok\n")}, nil
}

func fullToolEnv(manager sysprobe.PackageManager) sysprobe.Environment {
	available := map[string]string{}
	for _, tool := range sysprobe.RequiredTools {
		available[tool] = "/usr/bin/" + tool
	}
	return sysprobe.Environment{
		Manager:        manager,
		AvailableTools: available,
		FFTW:           sysprobe.FFTWStatus{SinglePrecision: true, DoublePrecision: true, Headers: true},
	}
}

func testPaths(t *testing.T) paths.WorkPaths {
	t.Helper()
	pp, err := paths.Resolve(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return pp
}

func TestRun_SkipWhenAlreadyInstalled(t *testing.T) {
	runner := &fakeRunner{}
	env := fullToolEnv(sysprobe.ManagerApt)
	env.InstalledVersion = "2020"

	svc := &Service{
		Config: config.Default(),
		Paths:  testPaths(t),
		Env:    env,
		Runner: runner,
		RCFile: filepath.Join(t.TempDir(), ".bashrc"),
	}

	res, err := svc.Run(context.Background(), "2020")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Skipped || res.Decision != reconcile.Skip {
		t.Fatalf("expected skip, got %+v", res)
	}
	// The compiler check runs before reconciliation; nothing else may.
	for _, call := range runner.calls {
		if !strings.Contains(call, "g++") {
			t.Fatalf("unexpected side effect after skip: %s", call)
		}
	}
}

func TestRun_SkipMatchesSuffixedVersions(t *testing.T) {
	runner := &fakeRunner{}
	env := fullToolEnv(sysprobe.ManagerApt)
	env.InstalledVersion = "2024.1-dev"

	svc := &Service{
		Config: config.Default(),
		Paths:  testPaths(t),
		Env:    env,
		Runner: runner,
		RCFile: filepath.Join(t.TempDir(), ".bashrc"),
	}

	res, err := svc.Run(context.Background(), "2024.1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("2024.1-dev vs 2024.1 must skip, got %+v", res)
	}
}

func TestRun_PreviewExecutesNothing(t *testing.T) {
	runner := &fakeRunner{}
	var out bytes.Buffer

	svc := &Service{
		Config:  config.Default(),
		Paths:   testPaths(t),
		Env:     fullToolEnv(sysprobe.ManagerApt),
		Runner:  runner,
		RCFile:  filepath.Join(t.TempDir(), ".bashrc"),
		Preview: true,
		Out:     &out,
	}

	res, err := svc.Run(context.Background(), "2025.4")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("preview executed commands: %v", runner.calls)
	}
	if res.Decision != reconcile.CleanInstall {
		t.Fatalf("decision = %v, want CleanInstall", res.Decision)
	}
	if res.Plan.Linkage != buildplan.LinkSystem {
		t.Fatalf("linkage = %v, want LinkSystem", res.Plan.Linkage)
	}
	rendered := out.String()
	for _, want := range []string{"preview:", "cmake", "make", "download:"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("preview output missing %q:\n%s", want, rendered)
		}
	}
}

func TestRun_PreviewSucceedsOnUnsupportedEnvironment(t *testing.T) {
	runner := &fakeRunner{}
	var out bytes.Buffer

	svc := &Service{
		Config: config.Default(),
		Paths:  testPaths(t),
		Env: sysprobe.Environment{
			Manager:        sysprobe.ManagerUnknown,
			AvailableTools: map[string]string{"make": "/usr/bin/make"},
		},
		Runner:  runner,
		RCFile:  filepath.Join(t.TempDir(), ".bashrc"),
		Preview: true,
		Out:     &out,
	}

	if _, err := svc.Run(context.Background(), "2025.4"); err != nil {
		t.Fatalf("preview must always succeed, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("preview executed commands: %v", runner.calls)
	}
	rendered := out.String()
	if !strings.Contains(rendered, "unavailable") {
		t.Fatalf("preview must render the unsupported-environment outcome:\n%s", rendered)
	}
	if !strings.Contains(rendered, "cmake") {
		t.Fatalf("rendered outcome must name the missing tools:\n%s", rendered)
	}
}

func TestRun_UnsupportedEnvironment(t *testing.T) {
	env := sysprobe.Environment{
		Manager:        sysprobe.ManagerUnknown,
		AvailableTools: map[string]string{"make": "/usr/bin/make"},
	}
	svc := &Service{
		Config: config.Default(),
		Paths:  testPaths(t),
		Env:    env,
		Runner: &fakeRunner{},
	}

	_, err := svc.Run(context.Background(), "2025.4")
	var uerr *UnsupportedEnvironmentError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedEnvironmentError, got %v", err)
	}
	if len(uerr.Missing) == 0 {
		t.Fatal("error must name the missing tools")
	}
}

func TestRun_DependencyInstallFailureIsFatalForTools(t *testing.T) {
	env := fullToolEnv(sysprobe.ManagerApt)
	delete(env.AvailableTools, "cmake")

	runner := &fakeRunner{
		onRun: func(command string, args []string) error {
			line := strings.Join(append([]string{command}, args...), " ")
			if strings.Contains(line, "install") {
				return errors.New("exit status 100")
			}
			return nil
		},
	}
	svc := &Service{
		Config: config.Default(),
		Paths:  testPaths(t),
		Env:    env,
		Runner: runner,
	}

	_, err := svc.Run(context.Background(), "2025.4")
	var derr *DependencyInstallError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DependencyInstallError, got %v", err)
	}
}

func TestRun_FullPipeline(t *testing.T) {
	archive := t.TempDir()
	writeTarGz(t, filepath.Join(archive, "gromacs-2025.4.tar.gz"), map[string]string{
		"gromacs-2025.4/CMakeLists.txt":  "project(Gromacs)",
		"gromacs-2025.4/src/needfix.cpp": "std::int64_t n = 0;",
		"gromacs-2025.4/src/fine.cpp":    "#include <cstdint>\nstd::int64_t n = 0;",
	})
	server := httptest.NewServer(http.FileServer(http.Dir(archive)))
	defer server.Close()

	prefix := t.TempDir()
	rcFile := filepath.Join(t.TempDir(), ".bashrc")

	cfg := config.Default()
	cfg.Install.Prefix = prefix
	cfg.Install.URLTemplate = server.URL + "/gromacs-%s.tar.gz"

	runner := &fakeRunner{
		onRun: func(command string, args []string) error {
			line := strings.Join(append([]string{command}, args...), " ")
			if strings.Contains(line, "make install") {
				// Simulate the build system's install step.
				if err := os.MkdirAll(filepath.Join(prefix, "bin"), 0o755); err != nil {
					return err
				}
				return os.WriteFile(filepath.Join(prefix, "bin", "GMXRC"), []byte("# GMXRC\n"), 0o755)
			}
			return nil
		},
	}

	svc := &Service{
		Config: cfg,
		Paths:  testPaths(t),
		Env:    fullToolEnv(sysprobe.ManagerApt),
		Runner: runner,
		RCFile: rcFile,
	}

	res, err := svc.Run(context.Background(), "2025.4")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped {
		t.Fatal("pipeline must not skip")
	}
	if res.Decision != reconcile.CleanInstall {
		t.Fatalf("decision = %v, want CleanInstall", res.Decision)
	}
	if res.PatchedFiles != 1 {
		t.Fatalf("patched files = %d, want 1", res.PatchedFiles)
	}
	if !res.RCLineAdded {
		t.Fatal("rc line must be added")
	}

	rc, err := os.ReadFile(rcFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rc), "bin/GMXRC") {
		t.Fatalf("rc file missing source line:\n%s", rc)
	}

	// The patched file must carry a backup alongside it.
	patched := filepath.Join(svc.Paths.SrcDir, "gromacs-2025.4", "gromacs-2025.4", "src", "needfix.cpp")
	if _, err := os.Stat(patched + ".orig"); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	joined := strings.Join(runner.calls, "\n")
	for _, want := range []string{"cmake", "make -j", "make check", "make install"} {
		if !strings.Contains(joined, want) {
			t.Errorf("pipeline never ran %q:\n%s", want, joined)
		}
	}
}

func TestRun_BuildRetriesOnceAtReducedParallelism(t *testing.T) {
	archive := t.TempDir()
	writeTarGz(t, filepath.Join(archive, "gromacs-2025.4.tar.gz"), map[string]string{
		"gromacs-2025.4/CMakeLists.txt": "project(Gromacs)",
	})
	server := httptest.NewServer(http.FileServer(http.Dir(archive)))
	defer server.Close()

	cfg := config.Default()
	cfg.Install.Prefix = t.TempDir()
	cfg.Install.URLTemplate = server.URL + "/gromacs-%s.tar.gz"

	builds := 0
	runner := &fakeRunner{
		onRun: func(command string, args []string) error {
			if command == "make" && len(args) == 1 && strings.HasPrefix(args[0], "-j") {
				builds++
				return errors.New("exit status 2")
			}
			return nil
		},
	}
	svc := &Service{
		Config: cfg,
		Paths:  testPaths(t),
		Env:    fullToolEnv(sysprobe.ManagerApt),
		Runner: runner,
	}

	_, err := svc.Run(context.Background(), "2025.4")
	var berr *BuildFailureError
	if !errors.As(err, &berr) {
		t.Fatalf("expected BuildFailureError, got %v", err)
	}
	if builds != 2 {
		t.Fatalf("build attempts = %d, want 2", builds)
	}
	last := runner.calls[len(runner.calls)-1]
	if !strings.Contains(last, "-j1") {
		t.Fatalf("retry must run at -j1, got %s", last)
	}
}

func TestBuildJobsCappedAtFour(t *testing.T) {
	svc := &Service{Config: config.Default()}
	if jobs := svc.buildJobs(); jobs > 4 || jobs < 1 {
		t.Fatalf("buildJobs = %d, want 1..4", jobs)
	}

	svc.Config.Build.MaxJobs = 2
	if jobs := svc.buildJobs(); jobs > 2 {
		t.Fatalf("buildJobs = %d, want <= configured max 2", jobs)
	}
}
