package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

func TestMemorySource_FetchRuns(t *testing.T) {
	in, err := DecodeScanInput(strings.NewReader(sampleYAML), FormatYAML)
	require.NoError(t, err)
	src := NewMemorySource(in)

	runs, err := src.FetchRuns(context.Background(), "best-crm")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "Acme is popular.", runs[1].AnswerText)
	assert.True(t, runs[1].Evaluation.IsMentioned)

	// Returned runs are copies.
	*runs[0].Evaluation.RankPosition = 9
	again, err := src.FetchRuns(context.Background(), "best-crm")
	require.NoError(t, err)
	assert.Equal(t, 2, *again[0].Evaluation.RankPosition)

	empty, err := src.FetchRuns(context.Background(), "cheap-crm")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = src.FetchRuns(context.Background(), "nope")
	assert.ErrorIs(t, err, ports.ErrPromptNotFound)
	var srcErr *ports.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "nope", srcErr.PromptID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.FetchRuns(ctx, "best-crm")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySource_EndToEnd(t *testing.T) {
	in, err := DecodeScanInput(strings.NewReader(sampleYAML), FormatYAML)
	require.NoError(t, err)

	scorer, err := application.NewScanScorer(NewMemorySource(in), application.DefaultScoringConfig())
	require.NoError(t, err)

	report, err := scorer.Score(context.Background(), in.Request())
	require.NoError(t, err)

	require.Len(t, report.Prompts, 1)
	assert.Equal(t, domain.EvidenceAggregated, report.Prompts[0].Evidence)
	require.Len(t, report.FailedPrompts, 1)
	assert.Equal(t, "cheap-crm", report.FailedPrompts[0].PromptID)

	sov := report.ShareOfVoice
	assert.Equal(t, 1, sov.TotalBrandMentions)
	assert.Equal(t, 1, sov.TotalPromptsTested)
	// Foo is listed in one of the two answers, which meets the majority.
	assert.Equal(t, 1, sov.CompetitorMentions[0].MentionCount)
	assert.Equal(t, 0, sov.CompetitorMentions[1].MentionCount)
	assert.InDelta(t, 50.0, sov.BrandShare, 1e-9)
}
