package deps

import (
	"errors"
	"fmt"

	"gmxup/internal/sysprobe"
)

// ErrUnknownPackageManager is returned when prerequisites are missing but no
// supported package manager was detected on the host.
var ErrUnknownPackageManager = errors.New("no supported package manager found (need apt, yum, dnf, pacman, or zypper)")

// InstallCommand is the fully resolved, not-yet-executed package install
// invocation for the detected package manager.
type InstallCommand struct {
	Manager  sysprobe.PackageManager
	Command  string
	Args     []string
	Packages []string
}

// Empty reports whether there is nothing to install.
func (c InstallCommand) Empty() bool {
	return len(c.Packages) == 0
}

// CommandLine returns the full argv for the install invocation.
func (c InstallCommand) CommandLine() []string {
	argv := append([]string{c.Command}, c.Args...)
	return append(argv, c.Packages...)
}

// managerSpec carries the invocation shape and tool→package table for one
// package manager variant.
type managerSpec struct {
	command  string
	args     []string
	packages map[string]string
}

var managerSpecs = map[sysprobe.PackageManager]managerSpec{
	sysprobe.ManagerApt: {
		command: "apt-get",
		args:    []string{"install", "-y"},
		packages: map[string]string{
			"cmake":      "cmake",
			"make":       "build-essential",
			"gcc":        "build-essential",
			"g++":        "build-essential",
			"curl":       "curl",
			"tar":        "tar",
			"pkg-config": "pkg-config",
		},
	},
	sysprobe.ManagerYum: {
		command: "yum",
		args:    []string{"install", "-y"},
		packages: map[string]string{
			"cmake":      "cmake",
			"make":       "make",
			"gcc":        "gcc",
			"g++":        "gcc-c++",
			"curl":       "curl",
			"tar":        "tar",
			"pkg-config": "pkgconfig",
		},
	},
	sysprobe.ManagerDnf: {
		command: "dnf",
		args:    []string{"install", "-y"},
		packages: map[string]string{
			"cmake":      "cmake",
			"make":       "make",
			"gcc":        "gcc",
			"g++":        "gcc-c++",
			"curl":       "curl",
			"tar":        "tar",
			"pkg-config": "pkgconf-pkg-config",
		},
	},
	sysprobe.ManagerPacman: {
		command: "pacman",
		args:    []string{"-S", "--noconfirm"},
		packages: map[string]string{
			"cmake":      "cmake",
			"make":       "make",
			"gcc":        "gcc",
			"g++":        "gcc",
			"curl":       "curl",
			"tar":        "tar",
			"pkg-config": "pkgconf",
		},
	},
	sysprobe.ManagerZypper: {
		command: "zypper",
		args:    []string{"install", "-y"},
		packages: map[string]string{
			"cmake":      "cmake",
			"make":       "make",
			"gcc":        "gcc",
			"g++":        "gcc-c++",
			"curl":       "curl",
			"tar":        "tar",
			"pkg-config": "pkg-config",
		},
	},
}

// fftwPackages maps each manager to the packages providing both FFTW
// precision variants plus development headers.
var fftwPackages = map[sysprobe.PackageManager][]string{
	sysprobe.ManagerApt:    {"libfftw3-dev"},
	sysprobe.ManagerYum:    {"fftw-devel"},
	sysprobe.ManagerDnf:    {"fftw-devel"},
	sysprobe.ManagerPacman: {"fftw"},
	sysprobe.ManagerZypper: {"fftw3-devel"},
}

// Resolve maps the tools missing from env onto a de-duplicated package
// install command for the detected package manager. The command is returned
// unexecuted. When no tools are missing the command is empty and valid even
// for an unknown manager.
func Resolve(env sysprobe.Environment, required []string) (InstallCommand, error) {
	missing := env.MissingTools(required)
	if len(missing) == 0 {
		return InstallCommand{Manager: env.Manager}, nil
	}

	spec, ok := managerSpecs[env.Manager]
	if !ok {
		return InstallCommand{}, ErrUnknownPackageManager
	}

	cmd := InstallCommand{
		Manager: env.Manager,
		Command: spec.command,
		Args:    append([]string{}, spec.args...),
	}

	seen := map[string]bool{}
	for _, tool := range missing {
		pkg, ok := spec.packages[tool]
		if !ok {
			return InstallCommand{}, fmt.Errorf("no %s package known for tool %q", env.Manager, tool)
		}
		if seen[pkg] {
			continue
		}
		seen[pkg] = true
		cmd.Packages = append(cmd.Packages, pkg)
	}
	return cmd, nil
}

// ResolveFFTW returns the install command for the FFTW development packages,
// or ErrUnknownPackageManager when the manager is unrecognized.
func ResolveFFTW(env sysprobe.Environment) (InstallCommand, error) {
	spec, ok := managerSpecs[env.Manager]
	if !ok {
		return InstallCommand{}, ErrUnknownPackageManager
	}
	return InstallCommand{
		Manager:  env.Manager,
		Command:  spec.command,
		Args:     append([]string{}, spec.args...),
		Packages: append([]string{}, fftwPackages[env.Manager]...),
	}, nil
}
