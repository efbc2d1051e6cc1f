package units

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.Unit = (*JudgeAggregatorUnit)(nil)

// DefaultConfidenceZ is the standard normal quantile for a two-sided 95%
// interval.
const DefaultConfidenceZ = 1.96

// JudgeAggregatorUnit collapses the repeated judge passes for one prompt
// into a single AggregatedVisibilityResult.
//
// Mention, industry and location rates are plain fractions over all passes.
// The average rank only considers passes that mentioned the brand and
// recorded a rank, so a mention without an explicit rank is not penalized.
// Uncertainty around the mention rate is reported as a Wilson score
// interval, which stays well-behaved for the handful of passes a prompt
// typically gets and for rates near 0 or 1.
//
// The unit is stateless and safe for concurrent use. Its output depends on
// the multiset of evaluations only, not on their order.
type JudgeAggregatorUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config JudgeAggregatorConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// JudgeAggregatorConfig controls the judge aggregator.
type JudgeAggregatorConfig struct {
	// ConfidenceZ is the normal quantile used for the Wilson interval.
	// 1.96 gives a 95% interval.
	ConfidenceZ float64 `yaml:"confidence_z" json:"confidence_z" validate:"gt=0,lte=5"`
}

// DefaultJudgeAggregatorConfig returns a configuration producing 95%
// Wilson intervals.
func DefaultJudgeAggregatorConfig() JudgeAggregatorConfig {
	return JudgeAggregatorConfig{ConfidenceZ: DefaultConfidenceZ}
}

// NewJudgeAggregatorUnit creates a JudgeAggregatorUnit with a validated
// configuration. Returns ErrEmptyUnitName if name is empty.
func NewJudgeAggregatorUnit(name string, config JudgeAggregatorConfig) (*JudgeAggregatorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &JudgeAggregatorUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("judge-aggregator-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *JudgeAggregatorUnit) Name() string { return u.name }

// Execute aggregates the evaluations stored under domain.KeyEvaluations
// and writes the result to domain.KeyAggregatedResult.
//
// Errors:
//   - domain.ErrKeyNotFound (wrapped in *domain.StateError) when no
//     evaluations are present in the state
//   - domain.ErrEmptyResultSet when the evaluation list is empty
func (u *JudgeAggregatorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "JudgeAggregatorUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "judge_aggregator"),
			attribute.String("unit.id", u.name),
			attribute.Float64("config.confidence_z", u.config.ConfidenceZ),
		),
	)
	defer span.End()

	evaluations, ok := domain.Get(state, domain.KeyEvaluations)
	if !ok {
		err := domain.NewStateError(domain.KeyEvaluations.Name(), "Get", domain.ErrKeyNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	result, err := u.Aggregate(evaluations)
	if err != nil {
		err = domain.NewStateError(domain.KeyEvaluations.Name(), "Aggregate", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	span.SetAttributes(
		attribute.Int("eval.run_count", result.RunCount),
		attribute.Float64("eval.mention_rate", result.MentionRate),
		attribute.Float64("eval.ci_lower", result.ConfidenceInterval.Lower),
		attribute.Float64("eval.ci_upper", result.ConfidenceInterval.Upper),
	)

	return domain.With(state, domain.KeyAggregatedResult, &result), nil
}

// Aggregate reduces evaluations using the unit's configured interval width.
func (u *JudgeAggregatorUnit) Aggregate(evaluations []domain.JudgeEvaluation) (domain.AggregatedVisibilityResult, error) {
	return aggregateEvaluations(evaluations, u.config.ConfidenceZ)
}

// Validate verifies the unit configuration.
func (u *JudgeAggregatorUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// AggregateEvaluations reduces the judge passes for one prompt into an
// AggregatedVisibilityResult with a 95% Wilson interval.
// It returns domain.ErrEmptyResultSet when evaluations is empty.
func AggregateEvaluations(evaluations []domain.JudgeEvaluation) (domain.AggregatedVisibilityResult, error) {
	return aggregateEvaluations(evaluations, DefaultConfidenceZ)
}

func aggregateEvaluations(evaluations []domain.JudgeEvaluation, z float64) (domain.AggregatedVisibilityResult, error) {
	if len(evaluations) == 0 {
		return domain.AggregatedVisibilityResult{}, domain.ErrEmptyResultSet
	}

	// Integer accumulators keep the result independent of input order.
	var (
		mentioned, industry, location int
		rankSum, rankCount            int
		positive, neutral, negative   int
	)
	typeCounts := make(map[domain.MentionType]int)

	for _, e := range evaluations {
		if e.IsMentioned {
			mentioned++
		}
		if e.HasRank() {
			rankSum += *e.RankPosition
			rankCount++
		}
		if e.IndustryMatch {
			industry++
		}
		if e.LocationMatch {
			location++
		}

		switch e.Sentiment {
		case domain.SentimentPositive:
			positive++
		case domain.SentimentNegative:
			negative++
		default:
			neutral++
		}

		mentionType := e.MentionType
		if mentionType == "" {
			mentionType = domain.MentionNone
		}
		typeCounts[mentionType]++
	}

	n := len(evaluations)
	total := float64(n)

	result := domain.AggregatedVisibilityResult{
		MentionRate:       float64(mentioned) / total,
		IndustryMatchRate: float64(industry) / total,
		LocationMatchRate: float64(location) / total,
		SentimentDistribution: domain.SentimentDistribution{
			Positive: float64(positive) / total,
			Neutral:  float64(neutral) / total,
			Negative: float64(negative) / total,
		},
		ConfidenceInterval: WilsonInterval(mentioned, n, z),
		RunCount:           n,
		MentionTypeCounts:  typeCounts,
	}

	if rankCount > 0 {
		avg := float64(rankSum) / float64(rankCount)
		result.AverageRankPosition = &avg
	}

	return result, nil
}

// WilsonInterval returns the Wilson score interval for successes out of n
// Bernoulli trials at normal quantile z:
//
//	denominator = 1 + z²/n
//	center      = (p + z²/(2n)) / denominator
//	margin      = (z/denominator) * sqrt(p(1-p)/n + z²/(4n²))
//
// The bounds are clamped to [0, 1]. With no trials there is no evidence
// and the full interval [0, 1] is returned.
func WilsonInterval(successes, n int, z float64) domain.ConfidenceInterval {
	if n <= 0 {
		return domain.ConfidenceInterval{Lower: 0, Upper: 1}
	}

	nf := float64(n)
	p := float64(successes) / nf
	z2 := z * z

	denominator := 1 + z2/nf
	center := (p + z2/(2*nf)) / denominator
	margin := (z / denominator) * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf))

	lower := math.Max(0, center-margin)
	upper := math.Min(1, center+margin)

	// At p = 0 and p = 1 the bound lands on p up to rounding.
	lower = math.Min(lower, p)
	upper = math.Max(upper, p)

	return domain.ConfidenceInterval{Lower: lower, Upper: upper}
}

// CreateJudgeAggregatorUnit is a factory function that creates a
// JudgeAggregatorUnit from a configuration map, following the UnitFactory
// pattern. Missing keys keep their defaults.
func CreateJudgeAggregatorUnit(id string, config map[string]any) (*JudgeAggregatorUnit, error) {
	cfg := DefaultJudgeAggregatorConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewJudgeAggregatorUnit(id, cfg)
}
