package behavior

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"orcacast/domain/core"
	"orcacast/domain/environment"
)

// Equation is a discovered linear form over a subset of covariates for one behavior label.
// Instances held by the registry are never mutated; callers outside the registry get clones.
type Equation struct {
	Label            string             `json:"behavior_label" yaml:"behavior_label"`
	KeyFactors       []string           `json:"key_factors" yaml:"key_factors"`
	Coefficients     map[string]float64 `json:"coefficients" yaml:"coefficients"`
	Intercept        float64            `json:"intercept" yaml:"intercept"`
	UncertaintyScale float64            `json:"uncertainty_scale" yaml:"uncertainty_scale"`
}

// Validate checks the equation shape. Violations are load errors.
func (e Equation) Validate() error {
	label := strings.TrimSpace(e.Label)
	if label == "" {
		return core.NewLoadError("equation has an empty behavior label")
	}
	if !finite(e.Intercept) {
		return core.NewEquationLoadError(label, "intercept is not finite")
	}
	if !finite(e.UncertaintyScale) || e.UncertaintyScale < 0 {
		return core.NewEquationLoadError(label, fmt.Sprintf("uncertainty_scale must be a finite value >= 0, got %v", e.UncertaintyScale))
	}

	seen := make(map[string]bool, len(e.KeyFactors))
	for _, factor := range e.KeyFactors {
		if !environment.IsKnown(factor) {
			return core.NewEquationLoadError(label, fmt.Sprintf("unknown key factor %q", factor))
		}
		if seen[factor] {
			return core.NewEquationLoadError(label, fmt.Sprintf("duplicate key factor %q", factor))
		}
		seen[factor] = true

		coef, ok := e.Coefficients[factor]
		if !ok {
			return core.NewEquationLoadError(label, fmt.Sprintf("no coefficient for key factor %q", factor))
		}
		if !finite(coef) {
			return core.NewEquationLoadError(label, fmt.Sprintf("coefficient for %q is not finite", factor))
		}
	}
	for factor := range e.Coefficients {
		if !seen[factor] {
			return core.NewEquationLoadError(label, fmt.Sprintf("coefficient %q is not a key factor", factor))
		}
	}
	return nil
}

// Clone returns a deep copy
func (e Equation) Clone() Equation {
	out := e
	out.KeyFactors = append([]string(nil), e.KeyFactors...)
	out.Coefficients = make(map[string]float64, len(e.Coefficients))
	for k, v := range e.Coefficients {
		out.Coefficients[k] = v
	}
	return out
}

// String renders the equation in key-factor order, e.g. "-1 + 2*prey_density"
func (e Equation) String() string {
	var b strings.Builder
	b.WriteString(formatFloat(e.Intercept))
	for _, factor := range e.KeyFactors {
		coef := e.Coefficients[factor]
		if coef < 0 {
			b.WriteString(" - ")
			coef = -coef
		} else {
			b.WriteString(" + ")
		}
		b.WriteString(formatFloat(coef))
		b.WriteString("*")
		b.WriteString(factor)
	}
	return b.String()
}

// Fingerprint is the canonical text used for equation-set hashing
func (e Equation) Fingerprint() string {
	return e.String() + " ~ " + formatFloat(e.UncertaintyScale)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
