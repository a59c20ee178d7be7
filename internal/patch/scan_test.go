package patch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsInclude(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     bool
	}{
		{"uses signed without include", "std::int64_t x = 0;", true},
		{"uses unsigned without include", "std::uint64_t x = 0;", true},
		{"no usage", "int x = 0;", false},
		{"angle include present", "#include <cstdint>\nstd::int64_t x;", false},
		{"quoted include present", "#include \"cstdint\"\nstd::int64_t x;", false},
		{"whitespace around brackets", "#include < cstdint >\nstd::int64_t x;", false},
		{"space after hash", "# include <cstdint>\nstd::uint64_t x;", false},
		{"empty file", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsInclude(tc.contents); got != tc.want {
				t.Fatalf("NeedsInclude = %v, want %v", got, tc.want)
			}
		})
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestScan_ExtensionsAndVerdicts(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.cpp":          "std::int64_t x;",
		"sub/b.hpp":      "#include <cstdint>\nstd::int64_t x;",
		"sub/c.h":        "std::uint64_t y;",
		"ignore.txt":     "std::int64_t x;",
		"CMakeLists.txt": "project(gmx)",
	})

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	positive := Positive(candidates)
	if len(positive) != 2 {
		t.Fatalf("expected 2 positive candidates, got %d", len(positive))
	}
}

func TestScan_IdempotentAfterApply(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.cpp": "#include <vector>\nstd::int64_t x;",
		"b.hpp": "std::uint64_t y;",
	})

	first, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	second, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(Positive(first)) != len(Positive(second)) {
		t.Fatal("repeated scans over an unmodified tree disagree")
	}

	for _, c := range Positive(first) {
		if err := Apply(c); err != nil {
			t.Fatalf("Apply(%s): %v", c.Path, err)
		}
	}

	after, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n := len(Positive(after)); n != 0 {
		t.Fatalf("expected no positive candidates after patching, got %d", n)
	}
}
