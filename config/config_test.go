package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/regrun/regrun/config"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestFoldExtendVersusOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.AllFileName), `
args = ["a", "b"]
`)

	parent := config.Root()
	parent.Extensions = []string{"sh"}

	dirCfg, err := config.FoldAllFile(parent, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, dirCfg.Args)

	// sibling without extend replaces entirely
	writeFile(t, filepath.Join(dir, "replace.toml"), `args = ["x"]`)

	replaceCfg, err := config.FoldTaskFile(dirCfg, dir, "replace")
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, replaceCfg.Args)

	// sibling with [extend].args appends
	writeFile(t, filepath.Join(dir, "extend.toml"), `
[extend]
args = ["x"]
`)

	extendCfg, err := config.FoldTaskFile(dirCfg, dir, "extend")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "x"}, extendCfg.Args)
}

func TestFoldRejectsConflictingReplaceAndExtend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.toml"), `
args = ["x"]
[extend]
args = ["y"]
`)

	_, err := config.FoldTaskFile(config.Root(), dir, "bad")
	require.Error(t, err)
}

func TestFoldRejectsExtensionsOutsideAllFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.toml"), `extensions = ["sh"]`)

	_, err := config.FoldTaskFile(config.Root(), dir, "bad")
	require.ErrorIs(t, err, config.ErrExtensionsOutsideAll)
}

func TestFoldInheritanceFallsThrough(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	writeFile(t, filepath.Join(root, config.AllFileName), `exe-path = "/bin/root"`)
	writeFile(t, filepath.Join(sub, config.AllFileName), `permit = 2`)

	rootCfg, err := config.FoldAllFile(config.Root(), root)
	require.NoError(t, err)
	require.Equal(t, "/bin/root", rootCfg.ExePath)

	subCfg, err := config.FoldAllFile(rootCfg, sub)
	require.NoError(t, err)
	require.Equal(t, "/bin/root", subCfg.ExePath, "falls through to nearest ancestor definition")
	require.Equal(t, 2, subCfg.Permit)
}

func TestGoldenSequenceReplacesPositionally(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.AllFileName), `
[assert]
golden = [{file = "a.out", equal = true}, {file = "b.out", equal = true}]
`)

	parentCfg, err := config.FoldAllFile(config.Root(), dir)
	require.NoError(t, err)
	require.Len(t, parentCfg.Assert.Golden, 2)

	writeFile(t, filepath.Join(dir, "task.toml"), `
[assert]
golden = [{file = "c.out", equal = true}]
`)

	taskCfg, err := config.FoldTaskFile(parentCfg, dir, "task")
	require.NoError(t, err)
	require.Len(t, taskCfg.Assert.Golden, 1)
	require.Equal(t, "c.out", taskCfg.Assert.Golden[0].File)
}

func TestConflictingCountSpec(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.toml"), `
[assert]
golden = [{file = "a.out", match = [{pattern = "x", count = 1, count-at-least = 1}]}]
`)

	_, err := config.FoldTaskFile(config.Root(), dir, "bad")
	require.ErrorIs(t, err, config.ErrConflictingSpec)
}

func TestSubstitute(t *testing.T) {
	v := config.Vars{RootDir: "/repo", Name: "test-match", Extension: "sh"}

	out, err := config.Substitute("{{root-dir}}/__golden__/{{name}}.{{extension}}.stdout", v)
	require.NoError(t, err)
	require.Equal(t, "/repo/__golden__/test-match.sh.stdout", out)

	_, err = config.Substitute("{{unknown}}", v)
	require.ErrorIs(t, err, config.ErrUnresolvedVariable)

	_, err = config.Substitute("{{name", v)
	require.ErrorIs(t, err, config.ErrUnresolvedVariable)
}

func TestResolveAppliesAcrossFields(t *testing.T) {
	cfg := config.Root()
	cfg.Args = []string{"run", "{{name}}.{{extension}}"}
	cfg.Envs = map[string]string{"NAME": "{{name}}"}
	cfg.ExternFiles = []string{"{{name}}.data"}
	cfg.Assert.Golden = []config.Golden{{File: "{{name}}.out"}}

	out, err := config.Resolve(cfg, config.Vars{Name: "foo", Extension: "sh", RootDir: "/r"})
	require.NoError(t, err)
	require.Equal(t, []string{"run", "foo.sh"}, out.Args)
	require.Equal(t, "foo", out.Envs["NAME"])
	require.Equal(t, []string{"foo.data"}, out.ExternFiles)
	require.Equal(t, "foo.out", out.Assert.Golden[0].File)
}

func TestValidateRejectsBadRegex(t *testing.T) {
	cfg := config.Root()
	cfg.Assert.Golden = []config.Golden{{
		File:  "a.out",
		Match: []config.CountSpec{{Pattern: "(unterminated", Count: intPtr(1)}},
	}}

	err := config.Validate(cfg, "a.out.toml")
	require.Error(t, err)
}

func intPtr(i int) *int { return &i }
