package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rcBackupSuffix is appended to the rc file name before any mutation.
const rcBackupSuffix = ".gmxup.bak"

// cleanMarkers are the fixed substrings identifying lines gmxup owns in the
// rc file. Clean removes any line containing either.
var cleanMarkers = []string{"bin/GMXRC", "added by gmxup"}

// SourceLine returns the rc line that puts the installed GROMACS on the
// shell environment.
func SourceLine(prefix string) string {
	return fmt.Sprintf("source %s  # added by gmxup", filepath.Join(prefix, "bin", "GMXRC"))
}

// DefaultRCFile returns the user's ~/.bashrc.
func DefaultRCFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".bashrc"), nil
}

// EnsureSourceLine appends the GMXRC source line to the rc file unless a
// line referencing it is already present. A backup is written before the
// file is mutated. The rc file is created when missing.
func EnsureSourceLine(rcPath, prefix string) (added bool, err error) {
	contents, err := os.ReadFile(rcPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read rc file: %w", err)
	}

	if containsMarkerLine(string(contents), "bin/GMXRC") {
		return false, nil
	}

	mode := rcFileMode(rcPath)
	if len(contents) > 0 {
		if err := os.WriteFile(rcPath+rcBackupSuffix, contents, mode); err != nil {
			return false, fmt.Errorf("write rc backup: %w", err)
		}
	}

	text := string(contents)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += SourceLine(prefix) + "\n"

	if err := os.WriteFile(rcPath, []byte(text), mode); err != nil {
		return false, fmt.Errorf("write rc file: %w", err)
	}
	return true, nil
}

// rcFileMode returns the rc file's existing permissions, or 0644 for a file
// that does not exist yet.
func rcFileMode(rcPath string) os.FileMode {
	if info, err := os.Stat(rcPath); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

// CleanSourceLines removes every line matching one of the fixed markers from
// the rc file, writing a backup first. It returns the number of lines
// removed. A missing rc file removes nothing.
func CleanSourceLines(rcPath string) (removed int, err error) {
	contents, err := os.ReadFile(rcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read rc file: %w", err)
	}

	lines := strings.Split(string(contents), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if lineMatchesMarker(line) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return 0, nil
	}

	mode := rcFileMode(rcPath)
	if err := os.WriteFile(rcPath+rcBackupSuffix, contents, mode); err != nil {
		return 0, fmt.Errorf("write rc backup: %w", err)
	}
	if err := os.WriteFile(rcPath, []byte(strings.Join(kept, "\n")), mode); err != nil {
		return 0, fmt.Errorf("write rc file: %w", err)
	}
	return removed, nil
}

// MatchingSourceLines returns the rc-file lines that CleanSourceLines would
// remove, without mutating anything.
func MatchingSourceLines(rcPath string) ([]string, error) {
	contents, err := os.ReadFile(rcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rc file: %w", err)
	}
	var matches []string
	for _, line := range strings.Split(string(contents), "\n") {
		if lineMatchesMarker(line) {
			matches = append(matches, line)
		}
	}
	return matches, nil
}

func lineMatchesMarker(line string) bool {
	for _, marker := range cleanMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func containsMarkerLine(contents, marker string) bool {
	for _, line := range strings.Split(contents, "\n") {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
