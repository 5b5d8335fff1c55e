package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcacast/domain/environment"
)

const listDocument = `
- behavior_label: feeding
  key_factors: [prey_density]
  coefficients: {prey_density: 2}
  intercept: -1
  uncertainty_scale: 0.5
- behavior_label: resting
  key_factors: [daylight]
  coefficients: {daylight: -1.5}
  intercept: 0.5
  uncertainty_scale: 0
`

const mappingDocument = `
equations:
  - behavior_label: traveling
    key_factors: [current_speed, depth]
    coefficients:
      current_speed: 0.8
      depth: -0.01
    intercept: 0.1
    uncertainty_scale: 0.3
`

func TestParseEquationsList(t *testing.T) {
	eqs, err := ParseEquations([]byte(listDocument))
	require.NoError(t, err)
	require.Len(t, eqs, 2)

	assert.Equal(t, "feeding", eqs[0].Label)
	assert.Equal(t, []string{environment.PreyDensity}, eqs[0].KeyFactors)
	assert.Equal(t, 2.0, eqs[0].Coefficients[environment.PreyDensity])
	assert.Equal(t, -1.0, eqs[0].Intercept)
	assert.Equal(t, 0.5, eqs[0].UncertaintyScale)
	assert.Equal(t, 0.0, eqs[1].UncertaintyScale)
}

func TestParseEquationsMapping(t *testing.T) {
	eqs, err := ParseEquations([]byte(mappingDocument))
	require.NoError(t, err)
	require.Len(t, eqs, 1)
	assert.Equal(t, []string{environment.CurrentSpeed, environment.Depth}, eqs[0].KeyFactors)
	assert.NoError(t, eqs[0].Validate())
}

func TestParseEquationsJSON(t *testing.T) {
	doc := `{"equations": [{"behavior_label": "socializing", "key_factors": ["pod_size"], "coefficients": {"pod_size": 0.15}, "intercept": -1.2, "uncertainty_scale": 0.4}]}`
	eqs, err := ParseEquations([]byte(doc))
	require.NoError(t, err)
	require.Len(t, eqs, 1)
	assert.Equal(t, 0.15, eqs[0].Coefficients[environment.PodSize])
}

func TestParseEquationsRejectsUnknownFields(t *testing.T) {
	doc := `
- behavior_label: feeding
  key_factors: [prey_density]
  coefficent: {prey_density: 2}
`
	_, err := ParseEquations([]byte(doc))
	assert.Error(t, err)

	_, err = ParseEquations([]byte("equations: [1, 2"))
	assert.Error(t, err)
}

func TestParseEquationsEmpty(t *testing.T) {
	eqs, err := ParseEquations(nil)
	require.NoError(t, err)
	assert.Empty(t, eqs)
}

func TestEquationFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listDocument), 0o644))

	source := NewEquationFile(path)
	assert.Equal(t, "file:"+path, source.Describe())

	eqs, err := source.FetchEquations(context.Background())
	require.NoError(t, err)
	assert.Len(t, eqs, 2)

	_, err = NewEquationFile(filepath.Join(dir, "missing.yaml")).FetchEquations(context.Background())
	assert.Error(t, err)

	_, err = NewEquationFile(filepath.Join(dir, "equations.toml")).FetchEquations(context.Background())
	assert.ErrorContains(t, err, "unsupported")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = source.FetchEquations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
