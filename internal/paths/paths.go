package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkPaths captures canonical locations inside the gmxup working directory.
type WorkPaths struct {
	Root         string
	ConfigFile   string
	DownloadsDir string
	SrcDir       string
	LogsDir      string
}

// Resolve determines the working directory using the optional --workdir flag
// or ~/.gmxup when the flag is empty.
func Resolve(workdirFlag string) (WorkPaths, error) {
	var (
		root string
		err  error
	)

	if workdirFlag != "" {
		root, err = filepath.Abs(workdirFlag)
		if err != nil {
			return WorkPaths{}, fmt.Errorf("resolve workdir: %w", err)
		}
	} else {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return WorkPaths{}, fmt.Errorf("detect user home: %w", herr)
		}
		root = filepath.Join(home, ".gmxup")
	}

	return newWorkPaths(root), nil
}

func newWorkPaths(root string) WorkPaths {
	return WorkPaths{
		Root:         root,
		ConfigFile:   filepath.Join(root, "gmxup.yaml"),
		DownloadsDir: filepath.Join(root, "downloads"),
		SrcDir:       filepath.Join(root, "src"),
		LogsDir:      filepath.Join(root, "logs"),
	}
}

// EnsureDirs creates the downloads/src/logs hierarchy under the root.
func (p WorkPaths) EnsureDirs() error {
	dirs := []string{p.Root, p.DownloadsDir, p.SrcDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
