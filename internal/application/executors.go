package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var (
	_ ports.Pipeline = (*Pipeline)(nil)
	_ ports.Layer    = (*Layer)(nil)
)

// Pipeline is a sequential execution container that processes executables
// in strict order, where each executable's output becomes the input for
// the next executable in the sequence.
type Pipeline struct {
	// id identifies the pipeline in error messages.
	id string
	// executables contains the ordered list of components that will execute
	// sequentially, with data flowing from one to the next.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mu provides thread-safe access to the executables slice during
	// concurrent read and write operations.
	mu sync.RWMutex
}

// NewPipeline creates a new sequential execution pipeline with the specified
// identifier, ready to accept executable components.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute processes all executables in this pipeline sequentially,
// passing the output state from each executable as input to the next.
// Execute stops between executables when ctx is cancelled and returns an
// error naming the executable that failed.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	executables := p.Executables()

	currentState := state
	for _, exec := range executables {
		if err := ctx.Err(); err != nil {
			return currentState, err
		}

		newState, err := exec.Execute(ctx, currentState)
		if err != nil {
			return currentState, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		currentState = newState
	}

	return currentState, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends an executable to the end of this pipeline's execution
// sequence. It returns an error if the executable is nil or if an
// executable with the same ID already exists in the pipeline.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}

	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered executables.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// Layer is a parallel execution container that runs independent
// executables concurrently on the same input state and merges their
// output states.
type Layer struct {
	// id identifies the layer in error messages.
	id string
	// executables run concurrently, all receiving the same input state.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mergeStrategy defines how to combine results from parallel executions.
	// If nil, keyMergeStrategy is used.
	mergeStrategy ports.MergeStrategy
	// concurrencyLimit controls the maximum number of concurrent executions.
	// Defaults to runtime.NumCPU() * 2 if not set.
	concurrencyLimit int
	// mu guards the fields above.
	mu sync.RWMutex
}

// NewLayer creates a new parallel execution layer with the specified
// identifier.
func NewLayer(id string) *Layer {
	return &Layer{
		id:               id,
		executables:      make([]ports.Executable, 0),
		idSet:            make(map[string]struct{}),
		concurrencyLimit: runtime.NumCPU() * 2,
	}
}

// Execute runs all executables in this layer concurrently, each receiving
// the same input state, then merges their output states in insertion
// order. If any executable fails, the joined errors are returned and the
// input state is left as the result.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	l.mu.RLock()
	executables := make([]ports.Executable, len(l.executables))
	copy(executables, l.executables)
	limit := l.concurrencyLimit
	if limit <= 0 {
		limit = runtime.NumCPU() * 2
	}
	strategy := l.mergeStrategy
	l.mu.RUnlock()

	if len(executables) == 0 {
		return state, nil
	}

	// Results are written by index so that merging follows insertion order
	// regardless of completion order.
	states := make([]domain.State, len(executables))
	errs := make([]error, len(executables))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, limit)

	for i, exec := range executables {
		wg.Add(1)
		go func(i int, e ports.Executable) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[i] = fmt.Errorf("executable %s: %w", e.ID(), ctx.Err())
				return
			}

			newState, err := e.Execute(ctx, state)
			if err != nil {
				errs[i] = fmt.Errorf("executable %s: %w", e.ID(), err)
				return
			}
			states[i] = newState
		}(i, exec)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return state, err
	}

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return state, fmt.Errorf("layer %s failed with %d errors: %w", l.id, len(failed), errors.Join(failed...))
	}

	if strategy == nil {
		strategy = keyMergeStrategy{}
	}

	mergedState, err := strategy.Merge(state, states)
	if err != nil {
		return state, fmt.Errorf("layer %s: merge failed: %w", l.id, err)
	}

	return mergedState, nil
}

// ID returns the layer identifier.
func (l *Layer) ID() string { return l.id }

// Add includes an executable in this layer's parallel execution group.
// It returns an error if the executable is nil or its ID is taken.
func (l *Layer) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to layer")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	execID := exec.ID()
	if _, exists := l.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in layer", execID)
	}

	l.executables = append(l.executables, exec)
	l.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the layer's executables in insertion order.
func (l *Layer) Executables() []ports.Executable {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]ports.Executable, len(l.executables))
	copy(result, l.executables)
	return result
}

// SetMergeStrategy configures how parallel execution results are combined.
func (l *Layer) SetMergeStrategy(strategy ports.MergeStrategy) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mergeStrategy = strategy
}

// SetConcurrencyLimit configures the maximum number of executables that
// run at once. Zero or negative restores the default of runtime.NumCPU() * 2.
func (l *Layer) SetConcurrencyLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.concurrencyLimit = limit
}

// keyMergeStrategy overlays every key of each output state onto the base
// state, in order. When two executables write the same key, the later one
// wins.
type keyMergeStrategy struct{}

// Merge implements ports.MergeStrategy.
func (keyMergeStrategy) Merge(baseState domain.State, states []domain.State) (domain.State, error) {
	merged := baseState
	for _, s := range states {
		updates := make(map[string]any)
		for _, key := range s.Keys() {
			if v, ok := s.GetRaw(key); ok {
				updates[key] = v
			}
		}
		merged = merged.WithMultiple(updates)
	}
	return merged, nil
}
