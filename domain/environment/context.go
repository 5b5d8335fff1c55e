package environment

import (
	"math"
	"sort"

	"orcacast/domain/core"
)

// Context is a read-only snapshot of covariate values for one location and time.
// Absent covariates resolve through their defaults.
type Context map[string]float64

// Resolve returns the supplied value, falling back to the covariate default
func (c Context) Resolve(name string) (float64, bool) {
	if v, ok := c[name]; ok {
		return v, true
	}
	return Default(name)
}

// Merge returns a new context with overrides applied on top of c. Neither input is modified.
func (c Context) Merge(overrides Context) Context {
	out := make(Context, len(c)+len(overrides))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Clone copies the context
func (c Context) Clone() Context {
	return c.Merge(nil)
}

// Validate rejects unknown covariate names and non-finite values
func (c Context) Validate() error {
	for _, name := range c.Names() {
		if !IsKnown(name) {
			return core.NewUnknownCovariateError(name)
		}
		v := c[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewInvalidCovariateError(name, v)
		}
	}
	return nil
}

// Names returns the supplied covariate names, sorted
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
