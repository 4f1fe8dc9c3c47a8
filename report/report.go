// Package report renders assertion verdicts for humans: the persisted
// <name>.report file, and print-errs forwarding of a failing task's
// captured output to the driver's stderr.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/assert"
	"github.com/regrun/regrun/discover"
	"github.com/regrun/regrun/runner"
)

// Render produces the human-readable text written to <name>.report.
func Render(task discover.Task, outcome runner.TaskOutcome, verdict assert.Verdict) string {
	var b strings.Builder

	status := "PASS"
	if !verdict.Pass {
		status = "FAIL"
	}

	if outcome.Reason == runner.TimedOut {
		status = "TIMEOUT"
	} else if outcome.Reason == runner.Cancelled {
		status = "CANCELLED"
	}

	fmt.Fprintf(&b, "%s %s (exit %d, %v)\n", status, task.RelPath, outcome.ExitCode, outcome.WallTime.Round(1e6))

	if outcome.StagingError != nil {
		fmt.Fprintf(&b, "  staging error: %s\n", outcome.StagingError)
	}

	for _, f := range verdict.Failures {
		fmt.Fprintf(&b, "  - %s\n", renderFailure(f))
	}

	if !verdict.Pass {
		renderStagedFiles(&b, outcome.StagedFiles)
	}

	return b.String()
}

// renderStagedFiles lists the work directory's staged inputs as post-mortem
// evidence for a failing task, noting whether each was symlinked or copied.
func renderStagedFiles(b *strings.Builder, staged []runner.StagedFile) {
	if len(staged) == 0 {
		return
	}

	fmt.Fprintf(b, "  staged files:\n")

	for _, sf := range staged {
		kind := "copy"
		if sf.Symlink {
			kind = "symlink"
		}

		fmt.Fprintf(b, "    %s -> %s (%s)\n", sf.Source, sf.Dest, kind)
	}
}

func renderFailure(f assert.Failure) string {
	switch f.Kind {
	case assert.ExitCodeMismatch:
		return "exit code: " + f.Message
	case assert.GoldenMismatch:
		var b strings.Builder

		fmt.Fprintf(&b, "golden %s: %s", f.File, f.Message)

		for _, d := range f.Diff {
			fmt.Fprintf(&b, "\n      line %d: -%q +%q", d.LineNo, d.Want, d.Got)
		}

		return b.String()
	case assert.MatchMismatch:
		return fmt.Sprintf("match %s: %s", f.File, f.Message)
	case assert.ValueMismatch:
		return fmt.Sprintf("value %s: %s", f.File, f.Message)
	default:
		return f.Message
	}
}

// Write persists the rendered report to <name>.report alongside the
// task's captured output.
func Write(task discover.Task, workDir string, content string) error {
	path := workDir + "/" + task.Name + ".report"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}

	return nil
}

// Forward prints a failing task's captured stdout/stderr to the driver's
// stderr when print-errs is enabled. Passing tasks are never forwarded.
func Forward(logger *log.Logger, task discover.Task, outcome runner.TaskOutcome, verdict assert.Verdict) {
	if !task.Config.PrintErrs || verdict.Pass {
		return
	}

	logger.Debugf("forwarding captured output for %s", task.RelPath)

	fmt.Fprintf(os.Stderr, "--- %s stdout ---\n%s\n", task.RelPath, outcome.Stdout)
	fmt.Fprintf(os.Stderr, "--- %s stderr ---\n%s\n", task.RelPath, outcome.Stderr)
}
