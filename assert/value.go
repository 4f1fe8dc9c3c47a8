package assert

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/regrun/regrun/config"
)

// floatToken is the fixed, non-configurable capture pattern used to find
// numeric tokens in captured output. Every other pattern in the system is
// user-authored and compiled with regexp2; this one is baked in, so the
// stdlib engine is sufficient and avoids paying regexp2's overhead on
// every captured-value assertion.
var floatToken = regexp.MustCompile(`[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?`)

type span struct {
	start, end int
}

type floatCapture struct {
	span
	value float64
}

// checkValue evaluates one value spec against content.
func checkValue(goldenFile string, spec config.ValueSpec, taskEpsilon float64, content string) (*Failure, error) {
	runes := []rune(content)

	floats, err := scanFloats(runes)
	if err != nil {
		return nil, err
	}

	var (
		captures   []floatCapture
		structural int
	)

	switch {
	case spec.PatternBefore != "" && spec.PatternAfter != "":
		captures, structural, err = capturesBothAnchors(runes, spec.PatternBefore, spec.PatternAfter, floats)
	case spec.PatternBefore != "":
		captures, err = capturesSingleAnchor(runes, spec.PatternBefore, floats, true)
	case spec.PatternAfter != "":
		captures, err = capturesSingleAnchor(runes, spec.PatternAfter, floats, false)
	default:
		captures = make([]floatCapture, len(floats))
		copy(captures, floats)
	}

	if err != nil {
		return nil, err
	}

	if structural > 0 {
		return &Failure{
			Kind:    ValueMismatch,
			File:    goldenFile,
			Message: fmt.Sprintf("%d pattern-before/pattern-after pair(s) did not bracket exactly one float", structural),
		}, nil
	}

	epsilon := taskEpsilon
	if spec.Epsilon != nil {
		epsilon = *spec.Epsilon
	}

	for _, c := range captures {
		if msg := outOfBounds(c.value, spec, epsilon); msg != "" {
			return &Failure{
				Kind:    ValueMismatch,
				File:    goldenFile,
				Message: fmt.Sprintf("captured value %v at offset %d: %s", c.value, c.start, msg),
			}, nil
		}
	}

	return nil, nil
}

func outOfBounds(v float64, spec config.ValueSpec, epsilon float64) string {
	if spec.Value != nil && abs(v-*spec.Value) > epsilon {
		return fmt.Sprintf("expected %v (±%v), got %v", *spec.Value, epsilon, v)
	}

	if spec.ValueAtLeast != nil && v < *spec.ValueAtLeast-epsilon {
		return fmt.Sprintf("expected >= %v (±%v), got %v", *spec.ValueAtLeast, epsilon, v)
	}

	if spec.ValueAtMost != nil && v > *spec.ValueAtMost+epsilon {
		return fmt.Sprintf("expected <= %v (±%v), got %v", *spec.ValueAtMost, epsilon, v)
	}

	return ""
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}

	return f
}

// scanFloats precomputes the sorted list of every float token's position
// and value, scanning the content once.
func scanFloats(runes []rune) ([]floatCapture, error) {
	s := string(runes)

	idx := floatToken.FindAllStringIndex(s, -1)

	out := make([]floatCapture, 0, len(idx))

	for _, pair := range idx {
		runeStart := len([]rune(s[:pair[0]]))
		runeEnd := len([]rune(s[:pair[1]]))

		v, err := strconv.ParseFloat(s[pair[0]:pair[1]], 64)
		if err != nil {
			continue
		}

		out = append(out, floatCapture{span: span{start: runeStart, end: runeEnd}, value: v})
	}

	return out, nil
}

func compileAnchor(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, regexp2.None)
}

// scanAnchor returns every non-overlapping match position of pattern over
// runes, as rune offsets.
func scanAnchor(runes []rune, pattern string) ([]span, error) {
	re, err := compileAnchor(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling anchor pattern %q: %w", pattern, err)
	}

	s := string(runes)

	var spans []span

	m, err := re.FindStringMatch(s)
	if err != nil {
		return nil, err
	}

	for m != nil {
		start := m.Index
		end := start + m.Length
		spans = append(spans, span{start: start, end: end})

		m, err = re.FindNextMatch(m)
		if err != nil {
			return nil, err
		}
	}

	return spans, nil
}

func isWhitespaceOnly(runes []rune, from, to int) bool {
	if from > to {
		return false
	}

	for _, r := range runes[from:to] {
		if !unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// capturesSingleAnchor implements the pattern-before-only / pattern-after-only
// rules: for each anchor match, the nearest float on the appropriate side is
// captured only if the gap between them is whitespace-only.
func capturesSingleAnchor(runes []rune, pattern string, floats []floatCapture, before bool) ([]floatCapture, error) {
	anchors, err := scanAnchor(runes, pattern)
	if err != nil {
		return nil, err
	}

	var out []floatCapture

	for _, a := range anchors {
		if before {
			i := sort.Search(len(floats), func(i int) bool { return floats[i].start >= a.end })
			if i < len(floats) && isWhitespaceOnly(runes, a.end, floats[i].start) {
				out = append(out, floats[i])
			}

			continue
		}

		i := sort.Search(len(floats), func(i int) bool { return floats[i].end > a.start })
		i--

		if i >= 0 && isWhitespaceOnly(runes, floats[i].end, a.start) {
			out = append(out, floats[i])
		}
	}

	return out, nil
}

// capturesBothAnchors implements the both-patterns-set rule: for each
// pattern-before match, find the nearest subsequent pattern-after match and
// require exactly one float strictly between them.
func capturesBothAnchors(
	runes []rune, beforePattern, afterPattern string, floats []floatCapture,
) ([]floatCapture, int, error) {
	befores, err := scanAnchor(runes, beforePattern)
	if err != nil {
		return nil, 0, err
	}

	afters, err := scanAnchor(runes, afterPattern)
	if err != nil {
		return nil, 0, err
	}

	var (
		out        []floatCapture
		structural int
	)

	for _, b := range befores {
		j := sort.Search(len(afters), func(i int) bool { return afters[i].start >= b.end })
		if j >= len(afters) {
			continue
		}

		a := afters[j]

		lo := sort.Search(len(floats), func(i int) bool { return floats[i].start >= b.end })
		hi := sort.Search(len(floats), func(i int) bool { return floats[i].start >= a.start })

		switch hi - lo {
		case 1:
			out = append(out, floats[lo])
		default:
			structural++
		}
	}

	return out, structural, nil
}
