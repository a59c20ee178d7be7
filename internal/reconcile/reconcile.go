// Package reconcile decides what to do about an already-installed GROMACS
// when a particular version is requested.
package reconcile

import "strings"

// Decision is the outcome of comparing the installed version against the
// requested one.
type Decision int

const (
	// Skip means the requested base version is already installed.
	Skip Decision = iota
	// CleanInstall means nothing is installed yet.
	CleanInstall
	// ReplaceThenInstall means a different version is installed and must be
	// removed before installing the requested one.
	ReplaceThenInstall
)

// String returns a short label for the decision.
func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case CleanInstall:
		return "clean-install"
	case ReplaceThenInstall:
		return "replace"
	default:
		return "unknown"
	}
}

// Base strips everything from the first '-' onward, so 2024.1-dev and 2024.1
// compare equal. Prerelease suffixes like -rc1 are stripped too; callers that
// care about the distinction must compare full strings themselves.
func Base(version string) string {
	if idx := strings.IndexByte(version, '-'); idx >= 0 {
		return version[:idx]
	}
	return version
}

// Reconcile compares the installed version (empty when absent) against the
// requested one. It is a pure function of the two strings: CleanInstall when
// nothing is installed, Skip when base versions match textually, and
// ReplaceThenInstall otherwise.
func Reconcile(installed, requested string) Decision {
	if installed == "" {
		return CleanInstall
	}
	if Base(installed) == Base(requested) {
		return Skip
	}
	return ReplaceThenInstall
}
