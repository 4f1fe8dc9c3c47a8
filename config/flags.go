package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RootFlags mirrors the CLI-derived implicit root Config. Only these
// root-level fields flow through viper; the per-directory TOML tree is
// resolved independently by Resolve/FoldAllFile/FoldTaskFile.
type RootFlags struct {
	WorkDir    string
	Extensions []string
	ExePath    string
	Args       []string
	Permits    int
	Include    []string
	Exclude    []string
	Debug      bool
	PrintErrs  bool
}

// SetFlags appends the root-level flags recognized by the driver to the
// provided flag set, one flag per root Config field.
func SetFlags(fs *pflag.FlagSet) {
	fs.String("work-dir", "./tmp", "Root directory under which per-task work directories are created. (env $REGRUN_WORK_DIR)")
	fs.StringSlice("extensions", nil, "Override the root __all__.toml extensions list. (env $REGRUN_EXTENSIONS)")
	fs.String("exe-path", "", "Override the root exe-path. (env $REGRUN_EXE_PATH)")
	fs.StringSlice("args", nil, "Override the root args. (env $REGRUN_ARGS)")
	fs.Int("permits", 1, "Total weighted-permit capacity for concurrent task execution. (env $REGRUN_PERMITS)")
	fs.StringSlice("include", nil, "Only discover tasks whose repo-relative path matches one of these globs. (env $REGRUN_INCLUDE)")
	fs.StringSlice("exclude", nil, "Exclude tasks whose repo-relative path matches one of these globs. (env $REGRUN_EXCLUDE)")
	fs.Bool("debug", false, "Emit each task's resolved effective config to stderr before scheduling. (env $REGRUN_DEBUG)")
	fs.Bool("print-errs", false, "Print captured stdout/stderr of failing tasks to stderr. (env $REGRUN_PRINT_ERRS)")
}

// NewViper creates a viper instance bound to the REGRUN_ environment prefix.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("regrun")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	return v
}

// FromViper reads the bound flags/env into a RootFlags value.
func FromViper(v *viper.Viper) RootFlags {
	return RootFlags{
		WorkDir:    v.GetString("work-dir"),
		Extensions: v.GetStringSlice("extensions"),
		ExePath:    v.GetString("exe-path"),
		Args:       v.GetStringSlice("args"),
		Permits:    v.GetInt("permits"),
		Include:    v.GetStringSlice("include"),
		Exclude:    v.GetStringSlice("exclude"),
		Debug:      v.GetBool("debug"),
		PrintErrs:  v.GetBool("print-errs"),
	}
}

// AsConfig produces the implicit root Config from the CLI-derived flags.
func (r RootFlags) AsConfig() Config {
	cfg := Root()
	cfg.Source = []string{"<cli>"}

	if len(r.Extensions) > 0 {
		cfg.Extensions = r.Extensions
	}

	if r.ExePath != "" {
		cfg.ExePath = r.ExePath
	}

	if len(r.Args) > 0 {
		cfg.Args = r.Args
	}

	if r.Permits > 0 {
		cfg.Permits = r.Permits
	} else {
		cfg.Permits = 1
	}

	cfg.PrintErrs = r.PrintErrs

	return cfg
}

// AbsWorkDir resolves the work-dir flag to an absolute path.
func (r RootFlags) AbsWorkDir() (string, error) {
	path := r.WorkDir
	if path == "" {
		path = "./tmp"
	}

	return filepath.Abs(path)
}
