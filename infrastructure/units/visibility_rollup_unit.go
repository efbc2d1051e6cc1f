package units

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.Unit = (*VisibilityRollupUnit)(nil)

// DefaultTopCompetitors is the number of competitors kept in
// ShareOfVoice.TopCompetitors.
const DefaultTopCompetitors = 5

// RollupOptions controls how prompt outcomes are combined into a
// ShareOfVoice.
type RollupOptions struct {
	// MajorityThreshold is the mention rate an aggregated prompt needs for
	// the brand to count as mentioned.
	MajorityThreshold float64 `yaml:"majority_threshold" json:"majority_threshold" validate:"gt=0,lte=1"`

	// TopCompetitors caps TopCompetitors. Zero or less keeps all.
	TopCompetitors int `yaml:"top_competitors" json:"top_competitors"`

	// ConfidenceZ sets the width of the brand mention interval.
	ConfidenceZ float64 `yaml:"confidence_z" json:"confidence_z" validate:"gt=0,lte=5"`
}

// DefaultRollupOptions returns the majority rule with a top-5 cut and a
// 95% brand interval.
func DefaultRollupOptions() RollupOptions {
	return RollupOptions{
		MajorityThreshold: DefaultMajorityThreshold,
		TopCompetitors:    DefaultTopCompetitors,
		ConfidenceZ:       DefaultConfidenceZ,
	}
}

// VisibilityRollupUnit combines the outcomes of every prompt in a scan
// into the brand's share of voice against its competitors.
type VisibilityRollupUnit struct {
	name    string
	options RollupOptions
	tracer  trace.Tracer
}

// NewVisibilityRollupUnit creates a VisibilityRollupUnit with validated
// options.
func NewVisibilityRollupUnit(name string, options RollupOptions) (*VisibilityRollupUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(options); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &VisibilityRollupUnit{
		name:    name,
		options: options,
		tracer:  otel.Tracer("visibility-rollup-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *VisibilityRollupUnit) Name() string { return u.name }

// Execute reads domain.KeyPromptOutcomes and the optional
// domain.KeyCompetitors and writes domain.KeyShareOfVoice.
func (u *VisibilityRollupUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "VisibilityRollupUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "visibility_rollup"),
			attribute.String("unit.id", u.name),
			attribute.Float64("config.majority_threshold", u.options.MajorityThreshold),
		),
	)
	defer span.End()

	outcomes, ok := domain.Get(state, domain.KeyPromptOutcomes)
	if !ok {
		err := domain.NewStateError(domain.KeyPromptOutcomes.Name(), "Get", domain.ErrKeyNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	competitors, _ := domain.Get(state, domain.KeyCompetitors)

	sov := u.Rollup(outcomes, competitors)

	span.SetAttributes(
		attribute.Int("rollup.prompts", sov.TotalPromptsTested),
		attribute.Int("rollup.brand_mentions", sov.TotalBrandMentions),
		attribute.Float64("rollup.brand_share", sov.BrandShare),
	)

	return domain.With(state, domain.KeyShareOfVoice, &sov), nil
}

// Rollup applies RollupVisibility with the unit's options.
func (u *VisibilityRollupUnit) Rollup(outcomes []domain.PromptOutcome, competitors []string) domain.ShareOfVoice {
	return RollupVisibility(outcomes, competitors, u.options)
}

// Validate verifies the unit options.
func (u *VisibilityRollupUnit) Validate() error {
	if err := validate.Struct(u.options); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// RollupVisibility computes the share of voice for a scan.
//
// A prompt counts as a brand mention when its aggregated mention rate
// reaches opts.MajorityThreshold, or, for a prompt judged once, when that
// judge saw the brand. Each competitor counts once per prompt whose
// detections mark it mentioned. Competitors are reported in the order of
// competitors; when that list is empty they appear in order of first
// detection. Detections naming a competitor outside a non-empty list are
// ignored.
func RollupVisibility(outcomes []domain.PromptOutcome, competitors []string, opts RollupOptions) domain.ShareOfVoice {
	names, index := competitorOrder(outcomes, competitors)

	type tally struct {
		count, rankSum, rankCount int
	}
	tallies := make([]tally, len(names))

	brandMentions := 0
	for _, outcome := range outcomes {
		if brandCounted(outcome.Evidence, opts.MajorityThreshold) {
			brandMentions++
		}

		seen := make(map[int]bool, len(outcome.Detections))
		for _, d := range outcome.Detections {
			i, ok := index[d.CompetitorName]
			if !ok || !d.Mentioned || seen[i] {
				continue
			}
			seen[i] = true
			tallies[i].count++
			if d.RankPosition != nil {
				tallies[i].rankSum += *d.RankPosition
				tallies[i].rankCount++
			}
		}
	}

	prompts := len(outcomes)
	summaries := make([]domain.CompetitorMentionSummary, len(names))
	totalMentions := brandMentions
	for i, name := range names {
		t := tallies[i]
		s := domain.CompetitorMentionSummary{
			CompetitorName: name,
			IsMentioned:    t.count > 0,
			MentionCount:   t.count,
		}
		if prompts > 0 {
			s.MentionRate = float64(t.count) / float64(prompts)
		}
		if t.rankCount > 0 {
			avg := float64(t.rankSum) / float64(t.rankCount)
			s.AverageRankPosition = &avg
		}
		summaries[i] = s
		totalMentions += t.count
	}

	z := opts.ConfidenceZ
	if z <= 0 {
		z = DefaultConfidenceZ
	}

	sov := domain.ShareOfVoice{
		BrandMentionInterval: WilsonInterval(brandMentions, prompts, z),
		TotalBrandMentions:   brandMentions,
		TotalPromptsTested:   prompts,
		TotalMentions:        totalMentions,
		CompetitorMentions:   summaries,
		TopCompetitors:       topCompetitors(summaries, opts.TopCompetitors),
	}
	if prompts > 0 {
		sov.BrandMentionRate = float64(brandMentions) / float64(prompts)
	}
	if totalMentions > 0 {
		sov.BrandShare = float64(brandMentions) / float64(totalMentions) * 100
	}
	return sov
}

// brandCounted applies the per-prompt brand rule to each evidence variant.
// Missing evidence never counts.
func brandCounted(evidence domain.PromptEvidence, threshold float64) bool {
	switch ev := evidence.(type) {
	case domain.AggregatedEvidence:
		return ev.Result.MentionRate >= threshold
	case domain.SingleRunEvidence:
		return ev.Evaluation.IsMentioned
	default:
		return false
	}
}

// competitorOrder returns the reporting order of competitors and an index
// by name. Duplicate names keep their first position.
func competitorOrder(outcomes []domain.PromptOutcome, competitors []string) ([]string, map[string]int) {
	index := make(map[string]int, len(competitors))
	names := make([]string, 0, len(competitors))
	add := func(name string) {
		if _, ok := index[name]; ok {
			return
		}
		index[name] = len(names)
		names = append(names, name)
	}

	if len(competitors) > 0 {
		for _, name := range competitors {
			add(name)
		}
		return names, index
	}

	for _, outcome := range outcomes {
		for _, d := range outcome.Detections {
			add(d.CompetitorName)
		}
	}
	return names, index
}

// topCompetitors orders summaries by mention count, descending, keeping
// scan order among ties, and truncates to n when n > 0.
func topCompetitors(summaries []domain.CompetitorMentionSummary, n int) []domain.CompetitorMentionSummary {
	top := slices.Clone(summaries)
	if top == nil {
		top = []domain.CompetitorMentionSummary{}
	}
	slices.SortStableFunc(top, func(a, b domain.CompetitorMentionSummary) int {
		return cmp.Compare(b.MentionCount, a.MentionCount)
	})
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top
}

// CreateVisibilityRollupUnit is a factory function that creates a
// VisibilityRollupUnit from a configuration map.
func CreateVisibilityRollupUnit(id string, config map[string]any) (*VisibilityRollupUnit, error) {
	opts := DefaultRollupOptions()
	if err := decodeConfig(config, &opts); err != nil {
		return nil, err
	}
	return NewVisibilityRollupUnit(id, opts)
}
