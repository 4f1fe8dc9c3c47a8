// Package config implements the hierarchical task configuration model: the
// typed schema recognized in __all__.toml and <name>.toml files, the fold
// rules that compose an effective Config from a chain of ancestor files, and
// {{...}} variable substitution.
package config

import (
	"errors"
	"fmt"
)

// ConfigError wraps any failure encountered while loading or folding
// configuration. It is fatal to the whole run.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func wrapErr(path string, err error) error {
	if err == nil {
		return nil
	}

	return &ConfigError{Path: path, Err: err}
}

var (
	// ErrUnresolvedVariable is returned when a {{...}} token cannot be resolved,
	// or when resolving it would itself produce a string containing "{{".
	ErrUnresolvedVariable = errors.New("unresolved variable")
	// ErrExtensionsOutsideAll is returned when a <name>.toml declares `extensions`.
	ErrExtensionsOutsideAll = errors.New("extensions may only be declared in __all__.toml")
	// ErrConflictingSpec is returned when a count or value spec sets more than
	// one (or none) of its mutually exclusive fields.
	ErrConflictingSpec = errors.New("exactly one of the mutually exclusive fields must be set")
	// ErrExtendConflict is returned when a file sets both a replacing key and
	// an [extend] entry for the same key.
	ErrExtendConflict = errors.New("cannot combine a replacing key with [extend] for the same key")
)

// Assert is the resolved assertion block for a task.
type Assert struct {
	ExitCode int      `toml:"exit-code"`
	Golden   []Golden `toml:"golden,omitempty"`
}

// Golden is one golden-file check.
type Golden struct {
	File  string      `toml:"file"`
	Equal bool        `toml:"equal"`
	Match []CountSpec `toml:"match,omitempty"`
	Value []ValueSpec `toml:"value,omitempty"`
}

// CountSpec is a single {pattern, count|count-at-least|count-at-most} check.
type CountSpec struct {
	Pattern      string `toml:"pattern"`
	Count        *int   `toml:"count,omitempty"`
	CountAtLeast *int   `toml:"count-at-least,omitempty"`
	CountAtMost  *int   `toml:"count-at-most,omitempty"`
}

// ValueSpec is a single captured-float check.
type ValueSpec struct {
	PatternBefore string   `toml:"pattern-before,omitempty"`
	PatternAfter  string   `toml:"pattern-after,omitempty"`
	Value         *float64 `toml:"value,omitempty"`
	ValueAtLeast  *float64 `toml:"value-at-least,omitempty"`
	ValueAtMost   *float64 `toml:"value-at-most,omitempty"`
	Epsilon       *float64 `toml:"epsilon,omitempty"`
}

// DefaultEpsilon is used when neither a value spec nor its task sets one.
const DefaultEpsilon = 1e-10

// Config is the effective, immutable configuration for a directory or task,
// produced by folding a chain of ancestor files. The toml tags let it be
// re-serialized for --debug output and for round-trip testing.
type Config struct {
	Ignore      bool              `toml:"ignore"`
	Extensions  []string          `toml:"extensions,omitempty"`
	ExePath     string            `toml:"exe-path,omitempty"`
	Args        []string          `toml:"args,omitempty"`
	Envs        map[string]string `toml:"envs,omitempty"`
	ExternFiles []string          `toml:"extern-files,omitempty"`
	PrintErrs   bool              `toml:"print-errs"`
	Permits     int               `toml:"permits,omitempty"`
	Permit      int               `toml:"permit"`
	Epsilon     float64           `toml:"epsilon"`
	Timeout     string            `toml:"timeout,omitempty"` // raw duration string; parsed by callers with time.ParseDuration
	Assert      Assert            `toml:"assert"`

	// Source records the chain of files folded to produce this Config, most
	// distant ancestor first. Used only for --debug output and diagnostics.
	Source []string `toml:"-"`
}

// Root returns the implicit root Config, derived from CLI/env inputs rather
// than any file.
func Root() Config {
	return Config{
		Epsilon: DefaultEpsilon,
		Envs:    map[string]string{},
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}

	out := make([]string, len(s))
	copy(out, s)

	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))

	out := make([]string, 0, len(base)+len(extra))

	for _, s := range base {
		if !seen[s] {
			seen[s] = true

			out = append(out, s)
		}
	}

	for _, s := range extra {
		if !seen[s] {
			seen[s] = true

			out = append(out, s)
		}
	}

	return out
}

func mergeMaps(base, overlay map[string]string) map[string]string {
	out := cloneMap(base)
	if out == nil {
		out = map[string]string{}
	}

	for k, v := range overlay {
		out[k] = v
	}

	return out
}

// fold composes child onto parent, producing a new effective Config.
// isAllFile distinguishes __all__.toml (where `extensions`/`permits` apply)
// from a task-scoped <name>.toml.
func fold(parent Config, path string, isAllFile bool, child *fileConfig) (Config, error) {
	out := parent
	out.Envs = cloneMap(parent.Envs)
	out.Args = cloneStrings(parent.Args)
	out.ExternFiles = cloneStrings(parent.ExternFiles)
	out.Extensions = cloneStrings(parent.Extensions)
	out.Assert.Golden = append([]Golden(nil), parent.Assert.Golden...)
	out.Source = append(append([]string(nil), parent.Source...), path)

	if child == nil {
		return out, nil
	}

	if child.Extensions != nil {
		if !isAllFile {
			return Config{}, wrapErr(path, ErrExtensionsOutsideAll)
		}

		// Always unions onto the parent set; a lower-level __all__.toml
		// cannot narrow or replace inherited extensions, only add to them.
		out.Extensions = unionStrings(parent.Extensions, child.Extensions)
	}

	if child.Ignore != nil {
		out.Ignore = *child.Ignore
	}

	if child.ExePath != nil {
		out.ExePath = *child.ExePath
	}

	if child.PrintErrs != nil {
		out.PrintErrs = *child.PrintErrs
	}

	if child.Epsilon != nil {
		out.Epsilon = *child.Epsilon
	}

	if child.Timeout != nil {
		out.Timeout = *child.Timeout
	}

	if child.Permits != nil && isAllFile {
		out.Permits = *child.Permits
	}

	if child.Permit != nil {
		out.Permit = *child.Permit
	}

	if err := foldSequenceOrMap(path, "args", child.Args != nil, child.Extend != nil && child.Extend.Args != nil); err != nil {
		return Config{}, err
	}

	if child.Args != nil {
		out.Args = cloneStrings(child.Args)
	}

	if err := foldSequenceOrMap(path, "envs", child.Envs != nil, child.Extend != nil && child.Extend.Envs != nil); err != nil {
		return Config{}, err
	}

	if child.Envs != nil {
		out.Envs = cloneMap(child.Envs)
	}

	if err := foldSequenceOrMap(
		path, "extern-files", child.ExternFiles != nil, child.Extend != nil && child.Extend.ExternFiles != nil,
	); err != nil {
		return Config{}, err
	}

	if child.ExternFiles != nil {
		out.ExternFiles = cloneStrings(child.ExternFiles)
	}

	if child.Extend != nil {
		out.Args = append(out.Args, child.Extend.Args...)
		out.Envs = mergeMaps(out.Envs, child.Extend.Envs)
		out.ExternFiles = append(out.ExternFiles, child.Extend.ExternFiles...)
	}

	if child.Assert != nil {
		if err := foldAssert(&out.Assert, child.Assert); err != nil {
			return Config{}, wrapErr(path, err)
		}
	}

	return out, nil
}

func foldSequenceOrMap(path, key string, replaces, extends bool) error {
	if replaces && extends {
		return wrapErr(path, fmt.Errorf("%w: %s", ErrExtendConflict, key))
	}

	return nil
}

func foldAssert(out *Assert, child *assertFile) error {
	if child.ExitCode != nil {
		out.ExitCode = *child.ExitCode
	}

	if child.Golden != nil {
		golden := make([]Golden, 0, len(child.Golden))

		for _, g := range child.Golden {
			resolved, err := resolveGolden(g)
			if err != nil {
				return err
			}

			golden = append(golden, resolved)
		}

		out.Golden = golden
	}

	return nil
}

func resolveGolden(g goldenFile) (Golden, error) {
	out := Golden{File: g.File, Equal: g.Equal}

	for _, m := range g.Match {
		spec, err := resolveCountSpec(m)
		if err != nil {
			return Golden{}, err
		}

		out.Match = append(out.Match, spec)
	}

	for _, v := range g.Value {
		spec, err := resolveValueSpec(v)
		if err != nil {
			return Golden{}, err
		}

		out.Value = append(out.Value, spec)
	}

	return out, nil
}

func resolveCountSpec(c countSpecFile) (CountSpec, error) {
	n := countSet(c.Count) + countSet(c.CountAtLeast) + countSet(c.CountAtMost)
	if n != 1 {
		return CountSpec{}, fmt.Errorf("%w: match spec for pattern %q", ErrConflictingSpec, c.Pattern)
	}

	return CountSpec{
		Pattern:      c.Pattern,
		Count:        c.Count,
		CountAtLeast: c.CountAtLeast,
		CountAtMost:  c.CountAtMost,
	}, nil
}

func resolveValueSpec(v valueSpecFile) (ValueSpec, error) {
	n := countSetF(v.Value) + countSetF(v.ValueAtLeast) + countSetF(v.ValueAtMost)
	if n != 1 {
		return ValueSpec{}, fmt.Errorf("%w: value spec", ErrConflictingSpec)
	}

	return ValueSpec{
		PatternBefore: v.PatternBefore,
		PatternAfter:  v.PatternAfter,
		Value:         v.Value,
		ValueAtLeast:  v.ValueAtLeast,
		ValueAtMost:   v.ValueAtMost,
		Epsilon:       v.Epsilon,
	}, nil
}

func countSet(p *int) int {
	if p == nil {
		return 0
	}

	return 1
}

func countSetF(p *float64) int {
	if p == nil {
		return 0
	}

	return 1
}
