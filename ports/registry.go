package ports

import (
	"orcacast/domain/behavior"
)

// RegistryPort is the read side of the equation registry
type RegistryPort interface {
	Get(label string) (behavior.Equation, error)
	ListBehaviors() []string
}
