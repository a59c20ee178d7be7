package installer

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveFileName(t *testing.T) {
	got, err := archiveFileName("https://ftp.gromacs.org/gromacs/gromacs-2024.1.tar.gz")
	if err != nil {
		t.Fatalf("archiveFileName: %v", err)
	}
	if got != "gromacs-2024.1.tar.gz" {
		t.Fatalf("name = %q, want gromacs-2024.1.tar.gz", got)
	}

	if _, err := archiveFileName("https://example.com/"); err == nil {
		t.Fatal("expected error for URL without a file name")
	}
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, contents := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGzAndSourceRoot(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "gromacs-2024.1.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"gromacs-2024.1/CMakeLists.txt": "project(Gromacs)",
		"gromacs-2024.1/src/main.cpp":   "int main() {}",
	})

	dest := filepath.Join(dir, "extract")
	if err := extractTarGz(archive, dest); err != nil {
		t.Fatalf("extractTarGz: %v", err)
	}

	root, err := sourceRoot(dest)
	if err != nil {
		t.Fatalf("sourceRoot: %v", err)
	}
	if filepath.Base(root) != "gromacs-2024.1" {
		t.Fatalf("root = %s, want gromacs-2024.1", root)
	}

	contents, err := os.ReadFile(filepath.Join(root, "src", "main.cpp"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(contents) != "int main() {}" {
		t.Fatalf("extracted contents = %q", contents)
	}
}

func TestExtractTarGz_ReplacesPreviousExtraction(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.tar.gz")
	writeTarGz(t, archive, map[string]string{"top/file.txt": "new"})

	dest := filepath.Join(dir, "extract")
	if err := os.MkdirAll(filepath.Join(dest, "stale"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := extractTarGz(archive, dest); err != nil {
		t.Fatalf("extractTarGz: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale")); !os.IsNotExist(err) {
		t.Fatal("previous extraction must be replaced")
	}
}

func TestSourceRoot_RequiresSingleDir(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "a"), 0o755)
	os.MkdirAll(filepath.Join(dir, "b"), 0o755)

	if _, err := sourceRoot(dir); err == nil {
		t.Fatal("expected error for two top-level directories")
	}
}
