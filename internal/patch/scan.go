// Package patch finds and fixes C++ sources that use fixed-width integer
// types without including <cstdint>. Newer GCC releases stopped pulling the
// header in transitively, which breaks older GROMACS source trees.
//
// Detection is deliberately textual: a single corrective include does not
// warrant a C++ parser. The heuristics live behind Candidate so they can be
// unit-tested without touching a compiler.
package patch

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IncludeLine is the corrective directive inserted into positive candidates.
const IncludeLine = "#include <cstdint>"

// BackupSuffix is appended to the original file name before mutation.
const BackupSuffix = ".orig"

// Candidate is a source file plus the verdict on whether it needs the
// corrective include.
type Candidate struct {
	Path       string
	NeedsPatch bool
}

var sourceExtensions = map[string]bool{
	".cpp": true,
	".h":   true,
	".hpp": true,
}

// facilitySpellings are the textual usages of the guarded facility. A file
// referencing either needs <cstdint> in scope.
var facilitySpellings = []string{"std::int64_t", "std::uint64_t"}

// cstdintIncludeRegex matches the include directive in angle-bracket or
// quoted form, tolerating inconsistent whitespace around the brackets.
var cstdintIncludeRegex = regexp.MustCompile(`#\s*include\s*(<\s*cstdint\s*>|"\s*cstdint\s*")`)

// Scan walks the source tree and returns a candidate for every file with a
// recognized extension. Each call re-walks the tree; scanning an already
// patched tree yields no positive candidates.
func Scan(sourceRoot string) ([]Candidate, error) {
	var candidates []Candidate
	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		candidates = append(candidates, Candidate{
			Path:       path,
			NeedsPatch: NeedsInclude(string(contents)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// Positive filters candidates down to the files that need patching.
func Positive(candidates []Candidate) []Candidate {
	var positive []Candidate
	for _, c := range candidates {
		if c.NeedsPatch {
			positive = append(positive, c)
		}
	}
	return positive
}

// NeedsInclude reports whether the file contents reference the guarded
// facility without already including <cstdint>.
func NeedsInclude(contents string) bool {
	return usesFacility(contents) && !hasInclude(contents)
}

func usesFacility(contents string) bool {
	for _, spelling := range facilitySpellings {
		if strings.Contains(contents, spelling) {
			return true
		}
	}
	return false
}

func hasInclude(contents string) bool {
	return cstdintIncludeRegex.MatchString(contents)
}
