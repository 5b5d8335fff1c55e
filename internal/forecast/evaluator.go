package forecast

import (
	"orcacast/domain/behavior"
	"orcacast/domain/core"
	"orcacast/domain/environment"
	"orcacast/domain/forecast"
)

// Evaluate computes intercept + Σ coefficients[f]·ctx[f] over the equation's key factors.
// Absent factors resolve through covariate defaults; a factor with neither fails the call.
// The result depends only on the inputs.
func Evaluate(eq behavior.Equation, ctx environment.Context) (forecast.RawActivation, error) {
	contributions := make(map[string]float64, len(eq.KeyFactors))
	value := eq.Intercept

	for _, factor := range eq.KeyFactors {
		x, ok := ctx.Resolve(factor)
		if !ok {
			return forecast.RawActivation{}, core.NewMissingCovariateError(eq.Label, factor)
		}
		c := eq.Coefficients[factor] * x
		contributions[factor] = c
		value += c
	}

	return forecast.RawActivation{
		Behavior:            eq.Label,
		Value:               value,
		ContributingFactors: contributions,
	}, nil
}
