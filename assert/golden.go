package assert

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxDiffLines bounds how many differing lines are recorded in evidence;
// the remainder is summarized by count.
const maxDiffLines = 200

// checkGolden performs the byte-exact equality check against
// <task-source-dir>/__golden__/<file>.
func checkGolden(sourceDir, capturedPath, goldenRelPath string) (*Failure, error) {
	goldenPath := filepath.Join(sourceDir, "__golden__", goldenRelPath)

	captured, err := os.ReadFile(capturedPath)
	if err != nil {
		return nil, fmt.Errorf("reading captured file %s: %w", capturedPath, err)
	}

	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return nil, fmt.Errorf("reading golden file %s: %w", goldenPath, err)
	}

	if bytes.Equal(captured, golden) {
		return nil, nil
	}

	diff, total := diffLines(string(golden), string(captured))

	msg := fmt.Sprintf("captured file does not match %s", goldenPath)
	if total > len(diff) {
		msg = fmt.Sprintf("%s (%d lines differ, showing first %d)", msg, total, len(diff))
	}

	return &Failure{
		Kind:    GoldenMismatch,
		File:    goldenRelPath,
		Message: msg,
		Diff:    diff,
	}, nil
}

// diffLines produces a positional line-by-line diff, recording at most
// maxDiffLines differing lines and returning the total differing-line
// count so the caller can summarize the remainder.
func diffLines(want, got string) ([]DiffLine, int) {
	wantLines := splitLines(want)
	gotLines := splitLines(got)

	n := len(wantLines)
	if len(gotLines) > n {
		n = len(gotLines)
	}

	var diffs []DiffLine

	total := 0

	for i := 0; i < n; i++ {
		var w, g string

		if i < len(wantLines) {
			w = wantLines[i]
		}

		if i < len(gotLines) {
			g = gotLines[i]
		}

		if w == g {
			continue
		}

		total++

		if len(diffs) < maxDiffLines {
			diffs = append(diffs, DiffLine{LineNo: i + 1, Got: g, Want: w})
		}
	}

	return diffs, total
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}
