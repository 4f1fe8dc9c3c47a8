package assert

import (
	"fmt"

	"github.com/regrun/regrun/config"
	"github.com/regrun/regrun/runner"
)

// Evaluate runs every assertion configured for a task against its captured
// outcome, in declaration order, collecting every failure rather than
// stopping at the first.
func Evaluate(cfg config.Config, sourceDir string, outcome runner.TaskOutcome) (Verdict, error) {
	v := newVerdict()

	checkExitCode(v, cfg.Assert.ExitCode, outcome)

	for _, golden := range cfg.Assert.Golden {
		capturedPath, err := capturedPathFor(outcome, golden.File)
		if err != nil {
			return Verdict{}, err
		}

		if golden.Equal {
			f, err := checkGolden(sourceDir, capturedPath, golden.File)
			if err != nil {
				return Verdict{}, err
			}

			if f != nil {
				v.fail(*f)
			}
		}

		content, err := readCaptured(capturedPath)
		if err != nil {
			return Verdict{}, err
		}

		for _, m := range golden.Match {
			f, err := checkMatch(golden.File, m, content)
			if err != nil {
				return Verdict{}, err
			}

			if f != nil {
				v.fail(*f)
			}
		}

		for _, val := range golden.Value {
			f, err := checkValue(golden.File, val, cfg.Epsilon, content)
			if err != nil {
				return Verdict{}, err
			}

			if f != nil {
				v.fail(*f)
			}
		}
	}

	return *v, nil
}

func checkExitCode(v *Verdict, expected int, outcome runner.TaskOutcome) {
	if outcome.ExitCode != expected {
		v.fail(Failure{
			Kind:    ExitCodeMismatch,
			Message: fmt.Sprintf("expected %d, got %d", expected, outcome.ExitCode),
		})
	}
}

// capturedPathFor resolves a golden target name to the file actually
// produced by the task run: <name>.stdout/<name>.stderr are the captured
// streams; anything else is looked up in the task's work directory.
func capturedPathFor(outcome runner.TaskOutcome, goldenFile string) (string, error) {
	switch goldenFile {
	case baseName(outcome.StdoutPath):
		return outcome.StdoutPath, nil
	case baseName(outcome.StderrPath):
		return outcome.StderrPath, nil
	default:
		return workDirJoin(outcome, goldenFile), nil
	}
}
