package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/discover"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// killGrace is the fixed grace period between SIGTERM and SIGKILL.
const killGrace = time.Second

// Run prepares the task's work directory, stages its files, spawns its
// configured program, and returns the captured outcome. Staging failures
// are folded into TaskOutcome.StagingError with a nil error; work-directory,
// timeout-parse, spawn, and capture/status I/O failures are returned as
// errors for this task only.
func Run(ctx context.Context, task discover.Task, workRoot string) (TaskOutcome, error) {
	logger := log.WithPrefix("runner | " + task.RelPath)

	workDir := task.WorkDir(workRoot)

	if err := prepareWorkDir(workDir); err != nil {
		return TaskOutcome{}, err
	}

	var staged []StagedFile

	companions, err := stageCompanions(task.SourceDir, workDir, task.Name)
	if err != nil {
		return TaskOutcome{StagingError: err}, nil
	}

	staged = append(staged, companions...)

	extern, err := stageExternFiles(task.SourceDir, workDir, task.Config.ExternFiles)
	if err != nil {
		return TaskOutcome{StagingError: err, StagedFiles: staged}, nil
	}

	staged = append(staged, extern...)

	exePath := task.Config.ExePath
	if exePath == "" {
		return TaskOutcome{}, &SpawnError{ExePath: exePath, Err: errors.New("exe-path is not configured")}
	}

	env := overlayEnv(os.Environ(), task.Config.Envs)

	resolved, err := interp.LookPathDir(workDir, expand.ListEnviron(env...), exePath)
	if err != nil {
		return TaskOutcome{}, &SpawnError{ExePath: exePath, Err: err}
	}

	runCtx := ctx

	var cancelTimeout context.CancelFunc

	if task.Config.Timeout != "" {
		d, err := time.ParseDuration(task.Config.Timeout)
		if err != nil {
			return TaskOutcome{}, fmt.Errorf("invalid timeout %q: %w", task.Config.Timeout, err)
		}

		runCtx, cancelTimeout = context.WithTimeout(ctx, d)
		defer cancelTimeout()
	}

	stdoutPath := filepath.Join(workDir, task.Name+".stdout")
	stderrPath := filepath.Join(workDir, task.Name+".stderr")
	statusPath := filepath.Join(workDir, task.Name+".status")

	stdoutCap, err := newCapture(stdoutPath)
	if err != nil {
		return TaskOutcome{StagedFiles: staged}, err
	}
	defer stdoutCap.Close()

	stderrCap, err := newCapture(stderrPath)
	if err != nil {
		return TaskOutcome{StagedFiles: staged}, err
	}
	defer stderrCap.Close()

	cmd := exec.Command(resolved, task.Config.Args...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.Stdout = stdoutCap
	cmd.Stderr = stderrCap
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	logger.Debugf("executing: %s", cmd.String())

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return TaskOutcome{StagedFiles: staged}, &SpawnError{ExePath: resolved, Err: err}
	}

	waitErr := waitWithEscalation(runCtx, ctx, cmd, logger)

	wallTime := time.Since(start)

	exitCode, signalName, reason := normalizeExit(waitErr, runCtx, ctx)

	outcome := TaskOutcome{
		ExitCode:    exitCode,
		Signal:      signalName,
		Reason:      reason,
		WallTime:    wallTime,
		StdoutPath:  stdoutPath,
		StderrPath:  stderrPath,
		StatusPath:  statusPath,
		Stdout:      stdoutCap.Bytes(),
		Stderr:      stderrCap.Bytes(),
		StagedFiles: staged,
	}

	if reason == Cancelled {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Debugf("failed to clean up work dir %s after cancellation: %s", workDir, err)
		}

		return outcome, nil
	}

	if err := writeStatus(statusPath, outcome); err != nil {
		return outcome, err
	}

	return outcome, nil
}

// overlayEnv layers task envs (keys win) on top of the parent environment.
func overlayEnv(parent []string, overlay map[string]string) []string {
	out := append([]string(nil), parent...)

	for k, v := range overlay {
		out = append(out, k+"="+v)
	}

	return out
}

// waitWithEscalation waits for cmd to exit, or escalates SIGTERM then
// SIGKILL to the child's process group when runCtx (timeout) or driverCtx
// (external cancellation) is done first.
func waitWithEscalation(runCtx, driverCtx context.Context, cmd *exec.Cmd, logger *log.Logger) error {
	done := make(chan error, 1)

	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
	case <-driverCtx.Done():
	}

	pgid := cmd.Process.Pid

	logger.Debugf("sending SIGTERM to process group %d", pgid)

	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case err := <-done:
		return err
	case <-time.After(killGrace):
	}

	logger.Debugf("sending SIGKILL to process group %d", pgid)

	_ = syscall.Kill(-pgid, syscall.SIGKILL)

	return <-done
}

func normalizeExit(waitErr error, runCtx, driverCtx context.Context) (int, string, TerminationReason) {
	var exitErr *exec.ExitError

	if waitErr == nil {
		return 0, "", Exited
	}

	reason := Exited

	switch {
	case driverCtx.Err() != nil:
		reason = Cancelled
	case runCtx.Err() != nil:
		reason = TimedOut
	}

	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := status.Signal()

			return 128 + int(sig), sig.String(), reason
		}

		return exitErr.ExitCode(), "", reason
	}

	return -1, "", reason
}

func writeStatus(path string, outcome TaskOutcome) error {
	content := strconv.Itoa(outcome.ExitCode)
	if outcome.Signal != "" {
		content = fmt.Sprintf("%d (%s)", outcome.ExitCode, outcome.Signal)
	}

	if outcome.Reason == TimedOut {
		content += " (timeout)"
	}

	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return &IOError{Path: path, Err: err}
	}

	return nil
}
