// Package runcmd orchestrates one end-to-end run: discovery, scheduling,
// execution, assertion, and reporting.
package runcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/assert"
	"github.com/regrun/regrun/config"
	"github.com/regrun/regrun/discover"
	"github.com/regrun/regrun/report"
	"github.com/regrun/regrun/runner"
	"github.com/regrun/regrun/schedule"
	"github.com/regrun/regrun/stats"
)

// ExitError carries the exact process exit code the driver should use:
// 2 for config/discovery errors, 1 when at least one task failed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}

	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type taskResult struct {
	outcome runner.TaskOutcome
	verdict assert.Verdict
}

// Run executes one full pass over rootDir and returns nil on success (exit
// code 0), or an *ExitError carrying the process exit code to use.
func Run(ctx context.Context, flags config.RootFlags, rootDir string) error {
	logger := log.WithPrefix(name)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("resolving root dir: %w", err)}
	}

	workRoot, err := flags.AbsWorkDir()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("resolving work dir: %w", err)}
	}

	root := flags.AsConfig()

	tasks, err := discover.Discover(root, discover.Options{
		RootDir: absRoot,
		Include: flags.Include,
		Exclude: flags.Exclude,
	})
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("discovery failed: %w", err)}
	}

	st := stats.New()
	st.Add(stats.Discovered, int32(len(tasks)))

	if flags.Debug {
		dumpDebug(logger, tasks)
	}

	active := make([]discover.Task, 0, len(tasks))

	for _, t := range tasks {
		if t.Config.Ignore {
			st.Add(stats.Ignored, 1)

			continue
		}

		active = append(active, t)
	}

	permits := int64(root.Permits)
	if permits < 1 {
		permits = 1
	}

	results := schedule.Run(ctx, active, permits,
		func(t discover.Task) int64 { return int64(t.Config.Permit) },
		func(ctx context.Context, t discover.Task) (taskResult, error) {
			return runOne(ctx, t, workRoot, logger)
		},
	)

	for i, r := range results {
		task := active[i]

		if r.Err != nil {
			logger.Errorf("%s: %s", task.RelPath, r.Err)

			if errors.Is(ctx.Err(), context.Canceled) {
				st.Add(stats.Cancelled, 1)
			} else {
				st.Add(stats.Failed, 1)
			}

			continue
		}

		tallyOutcome(&st, r.Value)
		report.Forward(logger, task, r.Value.outcome, r.Value.verdict)
	}

	st.Print()

	if code := st.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: errors.New("one or more tasks failed")}
	}

	return nil
}

func runOne(ctx context.Context, task discover.Task, workRoot string, logger *log.Logger) (taskResult, error) {
	outcome, err := runner.Run(ctx, task, workRoot)
	if err != nil {
		return taskResult{}, err
	}

	workDir := task.WorkDir(workRoot)

	verdict, err := assert.Evaluate(task.Config, task.SourceDir, outcome)
	if err != nil {
		return taskResult{outcome: outcome}, fmt.Errorf("evaluating assertions: %w", err)
	}

	rendered := report.Render(task, outcome, verdict)
	if err := report.Write(task, workDir, rendered); err != nil {
		logger.Errorf("failed to write report: %s", err)
	}

	if verdict.Pass && outcome.Reason == runner.Exited {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Debugf("failed to clean up work dir %s: %s", workDir, err)
		}
	}

	return taskResult{outcome: outcome, verdict: verdict}, nil
}

func tallyOutcome(st *stats.Stats, result taskResult) {
	switch {
	case result.outcome.Reason == runner.Cancelled:
		st.Add(stats.Cancelled, 1)
	case result.outcome.Reason == runner.TimedOut:
		st.Add(stats.Failed, 1)
	case result.verdict.Pass:
		st.Add(stats.Passed, 1)
	default:
		st.Add(stats.Failed, 1)
	}
}

func dumpDebug(logger *log.Logger, tasks []discover.Task) {
	for _, t := range tasks {
		rendered, err := config.EncodeCanonical(t.Config)
		if err != nil {
			logger.Errorf("%s: failed to render debug config: %s", t.RelPath, err)

			continue
		}

		fmt.Fprintf(os.Stderr, "--- %s ---\n%s\n", t.RelPath, rendered)
	}
}

const name = "regrun"
