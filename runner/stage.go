// Package runner implements the task executor: work-directory staging,
// process spawn, timeout/signal escalation, and output capture.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/otiai10/copy"
)

// StagedFile records one file staged into a task's work directory, and
// whether it was linked or copied.
type StagedFile struct {
	Source  string
	Dest    string
	Symlink bool
}

// IOError wraps a staging failure.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// prepareWorkDir removes any prior contents of dir and recreates it empty.
func prepareWorkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Path: dir, Err: err}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Path: dir, Err: err}
	}

	return nil
}

// stageCompanions links every file in sourceDir whose name begins with
// name, excluding the sibling <name>.toml and anything under __golden__
// (the walker never enumerates __golden__ contents, so this is naturally
// excluded by sourceDir always being a task's own directory).
func stageCompanions(sourceDir, workDir, name string) ([]StagedFile, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &IOError{Path: sourceDir, Err: err}
	}

	var staged []StagedFile

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		fileName := ent.Name()
		if !strings.HasPrefix(fileName, name) {
			continue
		}

		if fileName == name+".toml" {
			continue
		}

		sf, err := stageOne(filepath.Join(sourceDir, fileName), filepath.Join(workDir, fileName))
		if err != nil {
			return nil, err
		}

		staged = append(staged, sf)
	}

	sort.Slice(staged, func(i, j int) bool { return staged[i].Dest < staged[j].Dest })

	return staged, nil
}

// stageExternFiles resolves each extern-files glob (relative to sourceDir)
// and links every match into workDir by its base name.
func stageExternFiles(sourceDir, workDir string, patterns []string) ([]StagedFile, error) {
	var staged []StagedFile

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(sourceDir), pattern)
		if err != nil {
			return nil, &IOError{Path: pattern, Err: fmt.Errorf("invalid extern-files glob: %w", err)}
		}

		for _, m := range matches {
			sf, err := stageOne(filepath.Join(sourceDir, m), filepath.Join(workDir, filepath.Base(m)))
			if err != nil {
				return nil, err
			}

			staged = append(staged, sf)
		}
	}

	return staged, nil
}

// stageOne links src into dest, preferring a symlink and falling back to a
// copy when symlinks aren't available on the destination filesystem.
func stageOne(src, dest string) (StagedFile, error) {
	if err := os.Symlink(src, dest); err == nil {
		return StagedFile{Source: src, Dest: dest, Symlink: true}, nil
	}

	if err := copy.Copy(src, dest); err != nil {
		return StagedFile{}, &IOError{Path: src, Err: fmt.Errorf("failed to stage: %w", err)}
	}

	return StagedFile{Source: src, Dest: dest, Symlink: false}, nil
}
