package report_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/assert"
	"github.com/regrun/regrun/config"
	"github.com/regrun/regrun/discover"
	"github.com/regrun/regrun/report"
	"github.com/regrun/regrun/runner"
	"github.com/stretchr/testify/require"
)

func TestRenderIncludesFailureDetail(t *testing.T) {
	task := discover.Task{RelPath: "demo/test-sh/test-match.sh", Name: "test-match"}
	outcome := runner.TaskOutcome{ExitCode: 1}
	verdict := assert.Verdict{
		Pass: false,
		Failures: []assert.Failure{
			{Kind: assert.ExitCodeMismatch, Message: "expected 0, got 1"},
		},
	}

	out := report.Render(task, outcome, verdict)
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, "demo/test-sh/test-match.sh")
	require.Contains(t, out, "expected 0, got 1")
}

func TestRenderPassWhenNoFailures(t *testing.T) {
	task := discover.Task{RelPath: "t.sh", Name: "t"}
	outcome := runner.TaskOutcome{ExitCode: 0}
	verdict := assert.Verdict{Pass: true}

	out := report.Render(task, outcome, verdict)
	require.Contains(t, out, "PASS")
}

func TestRenderIncludesStagedFilesOnFailure(t *testing.T) {
	task := discover.Task{RelPath: "demo/test-sh/test-match.sh", Name: "test-match"}
	outcome := runner.TaskOutcome{
		ExitCode: 1,
		StagedFiles: []runner.StagedFile{
			{Source: "/src/test-match.sh", Dest: "/work/test-match.sh", Symlink: true},
			{Source: "/src/fixture.txt", Dest: "/work/fixture.txt", Symlink: false},
		},
	}
	verdict := assert.Verdict{Pass: false, Failures: []assert.Failure{{Kind: assert.ExitCodeMismatch, Message: "expected 0, got 1"}}}

	out := report.Render(task, outcome, verdict)
	require.Contains(t, out, "staged files:")
	require.Contains(t, out, "/src/test-match.sh -> /work/test-match.sh (symlink)")
	require.Contains(t, out, "/src/fixture.txt -> /work/fixture.txt (copy)")
}

func TestRenderOmitsStagedFilesOnPass(t *testing.T) {
	task := discover.Task{RelPath: "t.sh", Name: "t"}
	outcome := runner.TaskOutcome{
		ExitCode:    0,
		StagedFiles: []runner.StagedFile{{Source: "/src/t.sh", Dest: "/work/t.sh", Symlink: true}},
	}
	verdict := assert.Verdict{Pass: true}

	out := report.Render(task, outcome, verdict)
	require.NotContains(t, out, "staged files:")
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stderr
	os.Stderr = w

	fn()

	require.NoError(t, w.Close())
	os.Stderr = orig

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(out)
}

func TestForwardSkipsPassingTasks(t *testing.T) {
	task := discover.Task{RelPath: "t.sh", Config: config.Config{PrintErrs: true}}
	outcome := runner.TaskOutcome{Stdout: []byte("ok\n")}
	verdict := assert.Verdict{Pass: true}

	out := captureStderr(t, func() {
		report.Forward(log.New(io.Discard), task, outcome, verdict)
	})

	require.Empty(t, out)
}

func TestForwardSkipsWhenPrintErrsDisabled(t *testing.T) {
	task := discover.Task{RelPath: "t.sh", Config: config.Config{PrintErrs: false}}
	outcome := runner.TaskOutcome{Stdout: []byte("boom\n")}
	verdict := assert.Verdict{Pass: false}

	out := captureStderr(t, func() {
		report.Forward(log.New(io.Discard), task, outcome, verdict)
	})

	require.Empty(t, out)
}

func TestForwardWritesCapturedOutputOnFailure(t *testing.T) {
	task := discover.Task{RelPath: "t.sh", Config: config.Config{PrintErrs: true}}
	outcome := runner.TaskOutcome{Stdout: []byte("boom\n"), Stderr: []byte("trace\n")}
	verdict := assert.Verdict{Pass: false}

	out := captureStderr(t, func() {
		report.Forward(log.New(io.Discard), task, outcome, verdict)
	})

	require.Contains(t, out, "boom")
	require.Contains(t, out, "trace")
}

func TestWritePersistsReportFile(t *testing.T) {
	dir := t.TempDir()
	task := discover.Task{RelPath: "t.sh", Name: "t"}

	require.NoError(t, report.Write(task, dir, "PASS t.sh\n"))

	content, err := os.ReadFile(filepath.Join(dir, "t.report"))
	require.NoError(t, err)
	require.Equal(t, "PASS t.sh\n", string(content))
}
