package ports

import (
	"context"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// MergeStrategy defines how the states produced by parallel executions
// are combined into a single output state.
type MergeStrategy interface {
	// Merge combines the states produced from baseState by parallel
	// executions. It must be deterministic for a given input order and
	// must not modify its inputs.
	Merge(baseState domain.State, states []domain.State) (domain.State, error)
}

// Executable is anything that can run inside a Pipeline or Layer.
type Executable interface {
	// Execute processes the given state and returns the updated state.
	// Execute must be safe for concurrent use when called on different
	// states. The input state is immutable and MUST NOT be modified.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the executable's identifier, unique within its container.
	ID() string
}

// Pipeline runs executables in strict order, feeding each one's output
// to the next.
type Pipeline interface {
	Executable

	// Add appends an executable to the end of the sequence.
	Add(exec Executable) error

	// Executables returns the ordered executables. The returned slice
	// must not be modified by callers.
	Executables() []Executable
}

// Layer runs independent executables concurrently on the same input
// state and merges their results.
type Layer interface {
	Executable

	// Add includes an executable in the layer's parallel group.
	Add(exec Executable) error

	// Executables returns the executables of the layer in insertion order.
	Executables() []Executable

	// SetMergeStrategy configures how parallel results are combined.
	// If not set, a last-write-wins strategy is used.
	SetMergeStrategy(strategy MergeStrategy)
}
