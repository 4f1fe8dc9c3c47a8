package assert

import (
	"testing"

	"github.com/regrun/regrun/config"
	"github.com/stretchr/testify/require"
)

func TestCheckValueNeitherAnchorCapturesEveryFloat(t *testing.T) {
	spec := config.ValueSpec{ValueAtLeast: ptrF(0)}

	// the signed token -3.5 is captured too, so the at-least-0 bound fails on it.
	f, err := checkValue("out", spec, config.DefaultEpsilon, "1 2 -3.5 4e2")
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Contains(t, f.Message, "-3.5")
}

func TestCheckValuePatternAfterOnly(t *testing.T) {
	spec := config.ValueSpec{PatternAfter: `ms$`, Value: ptrF(42)}

	f, err := checkValue("out", spec, config.DefaultEpsilon, "latency 42 ms\n")
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckValueBothAnchorsRequireUniqueFloatBetween(t *testing.T) {
	spec := config.ValueSpec{PatternBefore: `start`, PatternAfter: `end`, Value: ptrF(5)}

	f, err := checkValue("out", spec, config.DefaultEpsilon, "start 5 end\n")
	require.NoError(t, err)
	require.Nil(t, f)

	// two floats between the anchors: structural mismatch, reported as a failure.
	f, err = checkValue("out", spec, config.DefaultEpsilon, "start 5 6 end\n")
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCheckValueRejectsOutOfEpsilon(t *testing.T) {
	spec := config.ValueSpec{Value: ptrF(1.0), Epsilon: ptrF(0.001)}

	f, err := checkValue("out", spec, config.DefaultEpsilon, "1.5\n")
	require.NoError(t, err)
	require.NotNil(t, f)
}

func ptrF(f float64) *float64 { return &f }
