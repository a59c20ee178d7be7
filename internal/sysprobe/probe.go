package sysprobe

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// RequiredTools is the fixed list of build prerequisites probed for: the
// build-system generator, make, both compilers, the archive fetcher and
// extractor, and the library-config helper.
var RequiredTools = []string{"cmake", "make", "gcc", "g++", "curl", "tar", "pkg-config"}

// managerProbeOrder is the fixed detection priority. First match wins;
// multi-manager systems are not considered.
var managerProbeOrder = []struct {
	binary  string
	manager PackageManager
}{
	{"apt-get", ManagerApt},
	{"yum", ManagerYum},
	{"dnf", ManagerDnf},
	{"pacman", ManagerPacman},
	{"zypper", ManagerZypper},
}

var headerSearchDirs = []string{"/usr/include", "/usr/local/include"}

// Probe captures the ambient host state into an Environment. It never fails:
// any individual inspection error degrades to unknown/empty.
func Probe(ctx context.Context) Environment {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	env := Environment{
		Manager:        detectManager(),
		AvailableTools: map[string]string{},
	}

	for _, tool := range RequiredTools {
		if path, err := exec.LookPath(tool); err == nil {
			env.AvailableTools[tool] = path
		}
	}

	env.FFTW = probeFFTW(ctx)
	env.InstalledVersion = installedVersion(ctx)
	return env
}

func detectManager() PackageManager {
	for _, entry := range managerProbeOrder {
		if _, err := exec.LookPath(entry.binary); err == nil {
			return entry.manager
		}
	}
	return ManagerUnknown
}

func probeFFTW(ctx context.Context) FFTWStatus {
	var status FFTWStatus

	libs := sharedLibraryIndex(ctx)
	status.SinglePrecision = strings.Contains(libs, "libfftw3f.so")
	status.DoublePrecision = strings.Contains(libs, "libfftw3.so")

	for _, dir := range headerSearchDirs {
		if _, err := os.Stat(dir + "/fftw3.h"); err == nil {
			status.Headers = true
			break
		}
	}
	return status
}

// sharedLibraryIndex returns the ldconfig cache listing, or empty on any
// failure.
func sharedLibraryIndex(ctx context.Context) string {
	path, err := exec.LookPath("ldconfig")
	if err != nil {
		// ldconfig usually lives in /sbin, which may be off PATH for
		// unprivileged users.
		if _, serr := os.Stat("/sbin/ldconfig"); serr == nil {
			path = "/sbin/ldconfig"
		} else {
			return ""
		}
	}
	output, err := exec.CommandContext(ctx, path, "-p").Output()
	if err != nil {
		return ""
	}
	return string(output)
}

var gmxVersionRegex = regexp.MustCompile(`(?i)gromacs version:?\s+(\S+)`)

// installedVersion reports the version of an existing GROMACS install, or
// empty when none is detectable.
func installedVersion(ctx context.Context) string {
	path, err := exec.LookPath("gmx")
	if err != nil {
		return ""
	}
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return ""
	}
	return ParseGmxVersion(string(output))
}

// ParseGmxVersion extracts the version string from `gmx --version` output.
func ParseGmxVersion(output string) string {
	match := gmxVersionRegex.FindStringSubmatch(output)
	if match == nil {
		return ""
	}
	return match[1]
}
