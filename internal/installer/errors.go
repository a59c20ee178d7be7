package installer

import (
	"fmt"
	"strings"
)

// UnsupportedEnvironmentError means prerequisites are missing and no
// recognized package manager is available to install them. Fatal, no retry.
type UnsupportedEnvironmentError struct {
	Missing []string
}

func (e *UnsupportedEnvironmentError) Error() string {
	return fmt.Sprintf("cannot install missing tools (%s): no supported package manager found",
		strings.Join(e.Missing, ", "))
}

// DependencyInstallError means a package manager install command exited
// non-zero. Where a fallback exists (FFTW) it is surfaced as a warning;
// otherwise it is fatal.
type DependencyInstallError struct {
	Command string
	Err     error
}

func (e *DependencyInstallError) Error() string {
	return fmt.Sprintf("dependency install failed (%s): %v", e.Command, e.Err)
}

func (e *DependencyInstallError) Unwrap() error { return e.Err }

// BuildFailureError means the build failed even after the reduced-parallelism
// retry.
type BuildFailureError struct {
	Attempts int
	Err      error
}

func (e *BuildFailureError) Error() string {
	return fmt.Sprintf("build failed after %d attempts: %v (try a newer GROMACS version, or a different compiler via CC/CXX)",
		e.Attempts, e.Err)
}

func (e *BuildFailureError) Unwrap() error { return e.Err }

// PostconditionError means the install apparently succeeded but the expected
// environment marker is absent.
type PostconditionError struct {
	Marker string
}

func (e *PostconditionError) Error() string {
	return fmt.Sprintf("install finished but %s is missing", e.Marker)
}
