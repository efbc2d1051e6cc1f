package application

import (
	"context"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.Executable = (*UnitAdapter)(nil)

// UnitAdapter wraps a ports.Unit so that it can run inside a Pipeline or
// Layer, which expect the ports.Executable interface.
type UnitAdapter struct {
	// unit performs the actual work when Execute is called.
	unit ports.Unit
	// id is the adapter's identifier within its container.
	id string
}

// NewUnitAdapter creates an adapter exposing unit under id.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// Execute delegates to the wrapped unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the adapter identifier.
func (ua *UnitAdapter) ID() string { return ua.id }
