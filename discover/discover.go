// Package discover implements the task discoverer: a depth-first walk that
// folds __all__.toml files, matches task files by extension, applies
// include/exclude globs, and produces each Task paired with its effective
// Config.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/regrun/regrun/config"
)

// GoldenDirName is never walked as a source of tasks.
const GoldenDirName = "__golden__"

// ErrNotDir is returned when the discovery root is not a directory.
var ErrNotDir = errors.New("root is not a directory")

// DiscoveryError wraps a failure encountered while walking the tree. It is
// fatal to the whole run.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Options configures a Discover call.
type Options struct {
	RootDir string
	Include []string
	Exclude []string
}

// Discover walks root depth-first, pre-order, folding __all__.toml files
// and returning the selected Tasks in stable discovery order.
func Discover(root config.Config, opts Options) ([]Task, error) {
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, &DiscoveryError{Path: opts.RootDir, Err: err}
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &DiscoveryError{Path: absRoot, Err: err}
	}

	if !info.IsDir() {
		return nil, &DiscoveryError{Path: absRoot, Err: ErrNotDir}
	}

	var tasks []Task

	err = walk(absRoot, absRoot, root, opts, &tasks)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func walk(absRoot, dir string, parent config.Config, opts Options, tasks *[]Task) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &DiscoveryError{Path: dir, Err: err}
	}

	dirConfig, err := config.FoldAllFile(parent, dir)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var subdirs []os.DirEntry

	var files []os.DirEntry

	for _, ent := range entries {
		if ent.IsDir() {
			if ent.Name() == GoldenDirName {
				continue
			}

			subdirs = append(subdirs, ent)

			continue
		}

		files = append(files, ent)
	}

	for _, ent := range files {
		task, ok, err := considerFile(absRoot, dir, dirConfig, ent.Name(), opts)
		if err != nil {
			return err
		}

		if ok {
			*tasks = append(*tasks, task)
		}
	}

	for _, sub := range subdirs {
		if err := walk(absRoot, filepath.Join(dir, sub.Name()), dirConfig, opts, tasks); err != nil {
			return err
		}
	}

	return nil
}

// considerFile decides whether fileName in dir is a task file, and if so
// builds its Task. It returns ok=false for non-candidates (wrong extension,
// sidecar .toml, excluded by globs, or no corresponding <name>.toml-only
// orphan).
func considerFile(absRoot, dir string, dirConfig config.Config, fileName string, opts Options) (Task, bool, error) {
	ext := extensionOf(fileName)
	if ext == "" {
		return Task{}, false, nil
	}

	if !containsString(dirConfig.Extensions, ext) {
		return Task{}, false, nil
	}

	name := strings.TrimSuffix(fileName, "."+ext)
	if name == "" || strings.Contains(name, ".") {
		// sidecar-style stems (e.g. "foo.stdout.txt") are never tasks.
		return Task{}, false, nil
	}

	absPath := filepath.Join(dir, fileName)

	relPath, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return Task{}, false, &DiscoveryError{Path: absPath, Err: err}
	}

	relPath = filepath.ToSlash(relPath)

	matched, err := matchesGlobs(relPath, opts.Include, opts.Exclude)
	if err != nil {
		return Task{}, false, &DiscoveryError{Path: relPath, Err: err}
	}

	if !matched {
		return Task{}, false, nil
	}

	taskConfig, err := config.FoldTaskFile(dirConfig, dir, name)
	if err != nil {
		return Task{}, false, err
	}

	relDir := filepath.ToSlash(strings.TrimSuffix(relPath, fileName))
	relDir = strings.TrimSuffix(relDir, "/")

	vars := config.Vars{RootDir: absRoot, Name: name, Extension: ext}

	resolved, err := config.Resolve(taskConfig, vars)
	if err != nil {
		return Task{}, false, err
	}

	if err := config.Validate(resolved, absPath); err != nil {
		return Task{}, false, err
	}

	task := Task{
		Path:      absPath,
		SourceDir: dir,
		RelDir:    relDir,
		RelPath:   relPath,
		Name:      name,
		Extension: ext,
		Config:    resolved,
	}

	return task, true, nil
}

func extensionOf(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx <= 0 || idx == len(fileName)-1 {
		return ""
	}

	return fileName[idx+1:]
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

// matchesGlobs applies the include/exclude rule against a
// repository-root-relative path: exclude wins, then include (if any is
// given) must match.
func matchesGlobs(relPath string, include, exclude []string) (bool, error) {
	for _, pattern := range exclude {
		ok, err := doublestar.Match(pattern, relPath)
		if err != nil {
			return false, fmt.Errorf("invalid exclude glob %q: %w", pattern, err)
		}

		if ok {
			return false, nil
		}
	}

	if len(include) == 0 {
		return true, nil
	}

	for _, pattern := range include {
		ok, err := doublestar.Match(pattern, relPath)
		if err != nil {
			return false, fmt.Errorf("invalid include glob %q: %w", pattern, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}
