package assert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/regrun/regrun/runner"
)

func baseName(path string) string {
	return filepath.Base(path)
}

func workDirJoin(outcome runner.TaskOutcome, name string) string {
	return filepath.Join(filepath.Dir(outcome.StdoutPath), name)
}

func readCaptured(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return string(b), nil
}
