package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
)

// AllFileName is the per-directory config file folded onto its ancestors
// before any task-scoped <name>.toml sibling is applied.
const AllFileName = "__all__.toml"

// FoldAllFile folds the __all__.toml found in dir (if any) onto parent,
// producing the effective Config for dir itself and its files.
func FoldAllFile(parent Config, dir string) (Config, error) {
	path := filepath.Join(dir, AllFileName)
	if !fileExists(path) {
		return fold(parent, path, true, nil)
	}

	fc, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	return fold(parent, path, true, fc)
}

// FoldTaskFile folds the <name>.toml sibling of a task file (if any) onto
// the directory's effective Config, producing the task's own effective
// Config.
func FoldTaskFile(dirConfig Config, taskDir, name string) (Config, error) {
	path := filepath.Join(taskDir, name+".toml")
	if !fileExists(path) {
		return fold(dirConfig, path, false, nil)
	}

	fc, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	return fold(dirConfig, path, false, fc)
}

// Vars is the {{...}} substitution surface.
type Vars struct {
	RootDir   string
	Name      string
	Extension string
}

func (v Vars) lookup(token string) (string, bool) {
	switch token {
	case "root-dir":
		return v.RootDir, true
	case "name":
		return v.Name, true
	case "extension":
		return v.Extension, true
	default:
		return "", false
	}
}

// Substitute performs a single left-to-right {{...}} substitution pass.
// It never rescans expanded text, and fails if a substitution would itself
// introduce a "{{" into the result.
func Substitute(s string, v Vars) (string, error) {
	var out strings.Builder

	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start == -1 {
			out.WriteString(s[i:])

			break
		}

		start += i

		out.WriteString(s[i:start])

		end := strings.Index(s[start+2:], "}}")
		if end == -1 {
			return "", fmt.Errorf("%w: unterminated token in %q", ErrUnresolvedVariable, s)
		}

		end += start + 2

		token := s[start+2 : end]

		val, ok := v.lookup(token)
		if !ok {
			return "", fmt.Errorf("%w: {{%s}}", ErrUnresolvedVariable, token)
		}

		if strings.Contains(val, "{{") {
			return "", fmt.Errorf("%w: substituting {{%s}} would produce an unresolved token", ErrUnresolvedVariable, token)
		}

		out.WriteString(val)
		i = end + 2
	}

	return out.String(), nil
}

// Resolve applies Substitute to every string field that participates in
// variable substitution: args, envs values, extern-files, and
// assert.golden[*].file. It returns a new Config; cfg is left untouched.
func Resolve(cfg Config, v Vars) (Config, error) {
	out := cfg

	args := make([]string, len(cfg.Args))

	for i, a := range cfg.Args {
		s, err := Substitute(a, v)
		if err != nil {
			return Config{}, err
		}

		args[i] = s
	}

	out.Args = args

	if cfg.Envs != nil {
		envs := make(map[string]string, len(cfg.Envs))

		for k, val := range cfg.Envs {
			s, err := Substitute(val, v)
			if err != nil {
				return Config{}, err
			}

			envs[k] = s
		}

		out.Envs = envs
	}

	extern := make([]string, len(cfg.ExternFiles))

	for i, p := range cfg.ExternFiles {
		s, err := Substitute(p, v)
		if err != nil {
			return Config{}, err
		}

		extern[i] = s
	}

	out.ExternFiles = extern

	golden := make([]Golden, len(cfg.Assert.Golden))

	for i, g := range cfg.Assert.Golden {
		file, err := Substitute(g.File, v)
		if err != nil {
			return Config{}, err
		}

		g.File = file
		golden[i] = g
	}

	out.Assert.Golden = golden

	return out, nil
}

// Validate compiles every regex pattern referenced by cfg's assertion block,
// surfacing a compile failure as a ConfigError before scheduling.
func Validate(cfg Config, path string) error {
	for _, g := range cfg.Assert.Golden {
		for _, m := range g.Match {
			if _, err := regexp2.Compile(m.Pattern, regexp2.None); err != nil {
				return wrapErr(path, fmt.Errorf("invalid match pattern %q: %w", m.Pattern, err))
			}
		}

		for _, val := range g.Value {
			if val.PatternBefore != "" {
				if _, err := regexp2.Compile(val.PatternBefore, regexp2.None); err != nil {
					return wrapErr(path, fmt.Errorf("invalid pattern-before %q: %w", val.PatternBefore, err))
				}
			}

			if val.PatternAfter != "" {
				if _, err := regexp2.Compile(val.PatternAfter, regexp2.None); err != nil {
					return wrapErr(path, fmt.Errorf("invalid pattern-after %q: %w", val.PatternAfter, err))
				}
			}
		}
	}

	return nil
}
