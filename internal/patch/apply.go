package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// includeDirectiveRegex matches any include directive at the start of a
// trimmed line, with the same whitespace tolerance as the guard detection.
var includeDirectiveRegex = regexp.MustCompile(`^#\s*include\b`)

// Apply inserts the corrective include into the candidate file, writing a
// backup copy alongside the original first. Calling Apply on a file that no
// longer needs the patch is a no-op.
func Apply(c Candidate) error {
	contents, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Path, err)
	}
	text := string(contents)
	if !NeedsInclude(text) {
		return nil
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.Path, err)
	}
	if err := os.WriteFile(c.Path+BackupSuffix, contents, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write backup for %s: %w", c.Path, err)
	}

	patched := InsertInclude(text)
	if err := os.WriteFile(c.Path, []byte(patched), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", c.Path, err)
	}
	return nil
}

// InsertInclude places the corrective include at the first anchor that
// exists, in order: immediately after the last include directive, else
// immediately before the first non-blank non-comment line (skipping a
// leading license block), else at the very start of the file. Exactly one
// rule fires for any input.
func InsertInclude(contents string) string {
	lines := strings.Split(contents, "\n")

	if idx, ok := lastIncludeLine(lines); ok {
		return joinInsert(lines, idx+1)
	}
	if idx, ok := firstCodeLine(lines); ok {
		return joinInsert(lines, idx)
	}
	return joinInsert(lines, 0)
}

func lastIncludeLine(lines []string) (int, bool) {
	last := -1
	for i, line := range lines {
		if includeDirectiveRegex.MatchString(strings.TrimSpace(line)) {
			last = i
		}
	}
	return last, last >= 0
}

// firstCodeLine finds the first line that is neither blank nor part of a
// comment, tracking block comments so a leading license header is skipped.
func firstCodeLine(lines []string) (int, bool) {
	inBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if inBlock {
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				inBlock = false
				rest := strings.TrimSpace(trimmed[idx+2:])
				if rest != "" && !strings.HasPrefix(rest, "//") {
					return i, true
				}
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				rest := strings.TrimSpace(trimmed[idx+2:])
				if rest != "" && !strings.HasPrefix(rest, "//") {
					return i, true
				}
				continue
			}
			inBlock = true
			continue
		}
		return i, true
	}
	return 0, false
}

func joinInsert(lines []string, at int) string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:at]...)
	out = append(out, IncludeLine)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}
