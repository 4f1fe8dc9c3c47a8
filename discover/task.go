package discover

import (
	"path/filepath"

	"github.com/regrun/regrun/config"
)

// Task is an immutable record produced by discovery: the source file, its
// logical identity, and the effective Config folded for it.
type Task struct {
	// Path is the absolute path of the task's source file.
	Path string

	// SourceDir is the absolute path of the directory containing Path.
	SourceDir string

	// RelDir is RelPath's directory, slash-separated, relative to the
	// discovery root ("" at the root itself).
	RelDir string

	// RelPath is the repository-root-relative, slash-separated display
	// identifier used for filtering and reporting.
	RelPath string

	// Name is the file stem, used for {{name}} substitution and staging.
	Name string

	// Extension is the file extension without a leading dot.
	Extension string

	// Config is the effective, fully resolved configuration for this task.
	Config config.Config
}

// GoldenDir returns the directory under which this task's golden files
// are expected to live.
func (t Task) GoldenDir() string {
	return filepath.Join(t.SourceDir, GoldenDirName)
}

// WorkDir returns the work directory for this task under workRoot:
// <work-root>/<RelDir>/<name>/.
func (t Task) WorkDir(workRoot string) string {
	if t.RelDir == "" {
		return filepath.Join(workRoot, t.Name)
	}

	return filepath.Join(workRoot, filepath.FromSlash(t.RelDir), t.Name)
}
