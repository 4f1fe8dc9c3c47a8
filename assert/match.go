package assert

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/regrun/regrun/config"
)

// checkMatch evaluates one count spec against content: compile the pattern
// with ECMA-like semantics and count non-overlapping matches.
func checkMatch(goldenFile string, spec config.CountSpec, content string) (*Failure, error) {
	re, err := regexp2.Compile(spec.Pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compiling match pattern %q: %w", spec.Pattern, err)
	}

	count, err := countMatches(re, content)
	if err != nil {
		return nil, fmt.Errorf("matching pattern %q: %w", spec.Pattern, err)
	}

	switch {
	case spec.Count != nil:
		if count != *spec.Count {
			return &Failure{
				Kind:    MatchMismatch,
				File:    goldenFile,
				Message: fmt.Sprintf("pattern %q: expected count %d, got %d", spec.Pattern, *spec.Count, count),
			}, nil
		}
	case spec.CountAtLeast != nil:
		if count < *spec.CountAtLeast {
			return &Failure{
				Kind:    MatchMismatch,
				File:    goldenFile,
				Message: fmt.Sprintf("pattern %q: expected count >= %d, got %d", spec.Pattern, *spec.CountAtLeast, count),
			}, nil
		}
	case spec.CountAtMost != nil:
		if count > *spec.CountAtMost {
			return &Failure{
				Kind:    MatchMismatch,
				File:    goldenFile,
				Message: fmt.Sprintf("pattern %q: expected count <= %d, got %d", spec.Pattern, *spec.CountAtMost, count),
			}, nil
		}
	}

	return nil, nil
}

// countMatches counts non-overlapping regexp2 matches over the entire
// content.
func countMatches(re *regexp2.Regexp, content string) (int, error) {
	count := 0

	m, err := re.FindStringMatch(content)
	if err != nil {
		return 0, err
	}

	for m != nil {
		count++

		m, err = re.FindNextMatch(m)
		if err != nil {
			return 0, err
		}
	}

	return count, nil
}
