package ports

import (
	"context"

	"orcacast/domain/behavior"
)

// EquationSource supplies previously discovered behavior equations. Implementations
// only fetch; validation happens when the registry loads them.
type EquationSource interface {
	FetchEquations(ctx context.Context) ([]behavior.Equation, error)

	// Describe names the source in logs and errors
	Describe() string
}
