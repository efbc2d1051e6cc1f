package source

import (
	"context"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.EvaluationSource = (*MemorySource)(nil)

// MemorySource serves judge runs held in memory. It is immutable after
// construction and safe for concurrent use.
type MemorySource struct {
	runs map[string][]domain.JudgeRun
}

// NewMemorySource indexes the runs of every prompt in input.
func NewMemorySource(input *ScanInput) *MemorySource {
	runs := make(map[string][]domain.JudgeRun, len(input.Prompts))
	for _, p := range input.Prompts {
		prompt := make([]domain.JudgeRun, len(p.Runs))
		for i, r := range p.Runs {
			prompt[i] = domain.JudgeRun{Evaluation: r.Evaluation, AnswerText: r.Answer}
		}
		runs[p.ID] = prompt
	}
	return &MemorySource{runs: runs}
}

// FetchRuns returns a copy of the runs recorded for promptID.
func (m *MemorySource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runs, ok := m.runs[promptID]
	if !ok {
		return nil, ports.NewSourceError(promptID, "FetchRuns", ports.ErrPromptNotFound)
	}

	out := make([]domain.JudgeRun, len(runs))
	for i, r := range runs {
		out[i] = r
		if r.Evaluation.RankPosition != nil {
			out[i].Evaluation.RankPosition = domain.Rank(*r.Evaluation.RankPosition)
		}
	}
	return out, nil
}
