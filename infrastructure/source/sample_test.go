package source

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/internal/application"
)

func TestGenerateSampleScan(t *testing.T) {
	opts := DefaultSampleOptions()
	in := GenerateSampleScan(opts, 7)

	require.NoError(t, in.Validate())
	assert.Equal(t, "sample-7", in.ScanID)
	require.Len(t, in.Prompts, opts.Prompts)

	for _, p := range in.Prompts {
		require.Len(t, p.Runs, opts.RunsPerPrompt)
		for _, run := range p.Runs {
			eval := run.Evaluation
			if !eval.IsMentioned {
				assert.NotContains(t, run.Answer, ". "+opts.Brand+"\n")
				continue
			}
			require.NotNil(t, eval.RankPosition)
			assert.Contains(t, run.Answer, fmt.Sprintf("%d. %s\n", *eval.RankPosition, opts.Brand))
		}
	}
}

func TestGenerateSampleScan_Deterministic(t *testing.T) {
	a := GenerateSampleScan(DefaultSampleOptions(), 42)
	b := GenerateSampleScan(DefaultSampleOptions(), 42)
	c := GenerateSampleScan(DefaultSampleOptions(), 43)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Prompts, c.Prompts)
}

func TestGenerateSampleScan_Scores(t *testing.T) {
	in := GenerateSampleScan(SampleOptions{
		Brand:         "Acme",
		Competitors:   []string{"Foo"},
		Prompts:       20,
		RunsPerPrompt: 2,
	}, 1)

	scorer, err := application.NewScanScorer(NewMemorySource(in), application.DefaultScoringConfig())
	require.NoError(t, err)

	report, err := scorer.Score(context.Background(), in.Request())
	require.NoError(t, err)
	assert.Empty(t, report.FailedPrompts)
	assert.Equal(t, 20, report.ShareOfVoice.TotalPromptsTested)
	assert.True(t, report.ShareOfVoice.BrandMentionInterval.Contains(report.ShareOfVoice.BrandMentionRate))
	assert.True(t, strings.HasPrefix(report.Prompts[0].PromptID, "prompt-"))
}
