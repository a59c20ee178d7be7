// Package buildplan turns the probed FFTW state into the CMake configuration
// for a GROMACS build. The linkage choice is a two-phase decision: the
// initial verdict may ask the driver to attempt an FFTW package install, and
// the outcome of that attempt resolves the final plan.
package buildplan

import (
	"fmt"

	"gmxup/internal/sysprobe"
)

// Initial is the first-phase linkage verdict derived purely from the probed
// FFTW status.
type Initial int

const (
	// UseSystem links against the host's FFTW; no install attempt needed.
	UseSystem Initial = iota
	// AttemptInstallThenUseSystem asks the driver to install the FFTW
	// development packages before configuring.
	AttemptInstallThenUseSystem
)

// String returns a short label for the verdict.
func (i Initial) String() string {
	if i == UseSystem {
		return "use-system-fftw"
	}
	return "install-fftw-then-use-system"
}

// Linkage is the resolved FFTW linkage choice carried by the final plan.
type Linkage int

const (
	// LinkSystem uses the host FFTW libraries.
	LinkSystem Linkage = iota
	// LinkOwn has the GROMACS build download and compile its own FFTW.
	LinkOwn
)

// Flag is one CMake -D option.
type Flag struct {
	Key   string
	Value string
}

// String renders the flag as passed on the cmake command line.
func (f Flag) String() string {
	return fmt.Sprintf("-D%s=%s", f.Key, f.Value)
}

// Plan is the ordered CMake configuration for one build. It carries exactly
// one FFTW linkage choice.
type Plan struct {
	Linkage Linkage
	Flags   []Flag
}

// ComposeInitial produces the first-phase verdict. A complete FFTW (both
// precision variants plus headers) always yields UseSystem; any missing piece
// asks for an install attempt first.
func ComposeInitial(status sysprobe.FFTWStatus) Initial {
	if status.Complete() {
		return UseSystem
	}
	return AttemptInstallThenUseSystem
}

// Options carries the build knobs that are independent of the linkage
// decision.
type Options struct {
	Prefix    string
	BuildType string
}

// Resolve completes the two-phase decision. installOK reports whether the
// driver's FFTW install attempt succeeded; it is ignored when the initial
// verdict was UseSystem. A failed attempt falls back to building GROMACS's
// own FFTW copy.
func Resolve(initial Initial, installOK bool, opts Options) Plan {
	linkage := LinkSystem
	if initial == AttemptInstallThenUseSystem && !installOK {
		linkage = LinkOwn
	}

	plan := Plan{Linkage: linkage}
	plan.Flags = append(plan.Flags,
		Flag{Key: "CMAKE_INSTALL_PREFIX", Value: opts.Prefix},
		Flag{Key: "CMAKE_BUILD_TYPE", Value: opts.BuildType},
	)
	if linkage == LinkOwn {
		plan.Flags = append(plan.Flags, Flag{Key: "GMX_BUILD_OWN_FFTW", Value: "ON"})
	} else {
		plan.Flags = append(plan.Flags, Flag{Key: "GMX_BUILD_OWN_FFTW", Value: "OFF"})
	}
	plan.Flags = append(plan.Flags, Flag{Key: "REGRESSIONTEST_DOWNLOAD", Value: "ON"})
	return plan
}

// ConfigureArgs renders the plan as cmake arguments for a source dir.
func (p Plan) ConfigureArgs(sourceDir string) []string {
	args := make([]string, 0, len(p.Flags)+1)
	args = append(args, sourceDir)
	for _, flag := range p.Flags {
		args = append(args, flag.String())
	}
	return args
}
