// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// Unit represents one step of visibility scoring. Each Unit reads what it
// needs from the State and returns a new State carrying its result.
// Units must be stateless and safe for concurrent use.
type Unit interface {
	// Name returns a unique identifier for this unit.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// The input State must not be modified; a new State is returned.
	// Errors are returned rather than panicking.
	//
	// Example:
	//
	//	newState, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return state, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks that the unit is properly configured.
	Validate() error
}

// UnitFactory builds a Unit from a loosely typed configuration map, as
// decoded from YAML or JSON.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry creates units by type name.
type UnitRegistry interface {
	// CreateUnit looks up the factory registered for unitType and builds a
	// unit with the given id and configuration.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for unitType.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists the registered unit types.
	GetSupportedTypes() []string
}
