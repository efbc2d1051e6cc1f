package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.EvaluationSource = (*MockEvaluationSource)(nil)

// MockEvaluationSource is an in-memory EvaluationSource for tests. Runs and
// errors are configured per prompt; unknown prompts return an error
// wrapping ports.ErrPromptNotFound.
type MockEvaluationSource struct {
	mu     sync.Mutex
	runs   map[string][]domain.JudgeRun
	errs   map[string]error
	block  map[string]bool
	calls  map[string]int
	onCall func(promptID string)
}

// NewMockEvaluationSource creates an empty mock source.
func NewMockEvaluationSource() *MockEvaluationSource {
	return &MockEvaluationSource{
		runs:  make(map[string][]domain.JudgeRun),
		errs:  make(map[string]error),
		block: make(map[string]bool),
		calls: make(map[string]int),
	}
}

// SetRuns records the runs returned for promptID.
func (m *MockEvaluationSource) SetRuns(promptID string, runs ...domain.JudgeRun) *MockEvaluationSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	if runs == nil {
		runs = []domain.JudgeRun{}
	}
	m.runs[promptID] = runs
	return m
}

// SetError makes FetchRuns fail with err for promptID.
func (m *MockEvaluationSource) SetError(promptID string, err error) *MockEvaluationSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errs[promptID] = err
	return m
}

// Block makes FetchRuns for promptID wait until its context is done.
func (m *MockEvaluationSource) Block(promptID string) *MockEvaluationSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.block[promptID] = true
	return m
}

// OnCall registers a hook invoked at the start of every FetchRuns call.
func (m *MockEvaluationSource) OnCall(fn func(promptID string)) *MockEvaluationSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onCall = fn
	return m
}

// Calls returns how many times FetchRuns was called for promptID.
func (m *MockEvaluationSource) Calls(promptID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[promptID]
}

// FetchRuns implements ports.EvaluationSource.
func (m *MockEvaluationSource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	m.mu.Lock()
	m.calls[promptID]++
	hook := m.onCall
	blocked := m.block[promptID]
	err := m.errs[promptID]
	runs, ok := m.runs[promptID]
	m.mu.Unlock()

	if hook != nil {
		hook(promptID)
	}
	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ports.NewSourceError(promptID, "FetchRuns", ports.ErrPromptNotFound)
	}

	out := make([]domain.JudgeRun, len(runs))
	copy(out, runs)
	return out, nil
}
