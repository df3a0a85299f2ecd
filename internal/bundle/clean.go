package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EmptyDir removes dir and everything below it, then recreates it empty.
// It refuses to remove the working directory, any of its parents, or a
// filesystem root.
func EmptyDir(dir, workDir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := checkRemovable(abs, workDir); err != nil {
		return err
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", abs)
	case err == nil:
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("removing %s: %w", abs, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("checking %s: %w", abs, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", abs, err)
	}
	return nil
}

func checkRemovable(abs, workDir string) error {
	if filepath.Dir(abs) == abs {
		return fmt.Errorf("refusing to empty filesystem root %s", abs)
	}
	if workDir == "" {
		return nil
	}
	wd, err := filepath.Abs(workDir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(abs, wd)
	if err != nil {
		return nil
	}
	if rel == "." || !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to empty %s: it contains the working directory", abs)
	}
	return nil
}
