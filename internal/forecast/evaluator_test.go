package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcacast/domain/behavior"
	"orcacast/domain/core"
	"orcacast/domain/environment"
	"orcacast/internal/testkit"
)

func TestEvaluateWorkedExample(t *testing.T) {
	eq := testkit.EquationByLabel(testkit.CanonicalEquations(), testkit.Feeding)

	raw, err := Evaluate(eq, environment.Context{})
	require.NoError(t, err)

	assert.Equal(t, testkit.Feeding, raw.Behavior)
	assert.InDelta(t, 0.2, raw.Value, 1e-12)
	assert.InDelta(t, 1.2, raw.ContributingFactors[environment.PreyDensity], 1e-12)
	assert.InDelta(t, 0.5498, Logistic(raw.Value), 1e-4)
}

func TestEvaluateUsesSuppliedValues(t *testing.T) {
	eq := testkit.EquationByLabel(testkit.CanonicalEquations(), testkit.Traveling)

	raw, err := Evaluate(eq, environment.Context{environment.CurrentSpeed: 2, environment.Depth: 100})
	require.NoError(t, err)

	// 0.1 + 0.8*2 - 0.01*100
	assert.InDelta(t, 0.7, raw.Value, 1e-12)
	assert.Len(t, raw.ContributingFactors, 2)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	eq := testkit.EquationByLabel(testkit.CanonicalEquations(), testkit.Traveling)
	ctx := environment.Context{environment.CurrentSpeed: 1.3}

	first, err := Evaluate(eq, ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Evaluate(eq, ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateMissingCovariate(t *testing.T) {
	eq := behavior.Equation{
		Label:        "feeding",
		KeyFactors:   []string{environment.PreyDensity, environment.SSTAnomaly},
		Coefficients: map[string]float64{environment.PreyDensity: 2, environment.SSTAnomaly: -0.4},
		Intercept:    -1,
	}

	_, err := Evaluate(eq, environment.Context{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingCovariate))
	assert.Contains(t, err.Error(), "feeding")
	assert.Contains(t, err.Error(), environment.SSTAnomaly)

	raw, err := Evaluate(eq, environment.Context{environment.SSTAnomaly: 1})
	require.NoError(t, err)
	assert.InDelta(t, -0.2, raw.Value, 1e-12)
}

func TestEvaluateInterceptOnly(t *testing.T) {
	raw, err := Evaluate(behavior.Equation{Label: "resting", Intercept: 0.3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, raw.Value)
	assert.Empty(t, raw.ContributingFactors)
}
