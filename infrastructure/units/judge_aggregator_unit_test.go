package units

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// scenarioAEvaluations returns ten passes, seven of which mention the brand
// with ranks 1,2,1,3,2,1,2.
func scenarioAEvaluations() []domain.JudgeEvaluation {
	ranks := []int{1, 2, 1, 3, 2, 1, 2}
	evals := make([]domain.JudgeEvaluation, 0, 10)
	for _, r := range ranks {
		evals = append(evals, domain.JudgeEvaluation{
			IsMentioned:   true,
			MentionType:   domain.MentionDirect,
			RankPosition:  domain.Rank(r),
			IndustryMatch: true,
			Sentiment:     domain.SentimentPositive,
		})
	}
	for range 3 {
		evals = append(evals, domain.JudgeEvaluation{
			MentionType:   domain.MentionNone,
			LocationMatch: true,
		})
	}
	return evals
}

// wilsonReference evaluates the Wilson formula without any clamping to p.
func wilsonReference(successes, n int, z float64) (float64, float64) {
	nf := float64(n)
	p := float64(successes) / nf
	d := 1 + z*z/nf
	c := (p + z*z/(2*nf)) / d
	m := (z / d) * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf))
	return math.Max(0, c-m), math.Min(1, c+m)
}

func TestAggregateEvaluations_ScenarioA(t *testing.T) {
	result, err := AggregateEvaluations(scenarioAEvaluations())
	require.NoError(t, err)

	assert.Equal(t, 10, result.RunCount)
	assert.InDelta(t, 0.7, result.MentionRate, 1e-12)
	require.NotNil(t, result.AverageRankPosition)
	assert.InDelta(t, 12.0/7.0, *result.AverageRankPosition, 1e-12)
	assert.InDelta(t, 1.714, *result.AverageRankPosition, 1e-3)

	lower, upper := wilsonReference(7, 10, 1.96)
	assert.InDelta(t, lower, result.ConfidenceInterval.Lower, 1e-12)
	assert.InDelta(t, upper, result.ConfidenceInterval.Upper, 1e-12)
	assert.InDelta(t, 0.3968, result.ConfidenceInterval.Lower, 1e-4)
	assert.InDelta(t, 0.8922, result.ConfidenceInterval.Upper, 1e-4)

	assert.InDelta(t, 0.7, result.IndustryMatchRate, 1e-12)
	assert.InDelta(t, 0.3, result.LocationMatchRate, 1e-12)
	assert.InDelta(t, 0.7, result.SentimentDistribution.Positive, 1e-12)
	assert.InDelta(t, 0.3, result.SentimentDistribution.Neutral, 1e-12)
	assert.Zero(t, result.SentimentDistribution.Negative)
	assert.Equal(t, map[domain.MentionType]int{
		domain.MentionDirect: 7,
		domain.MentionNone:   3,
	}, result.MentionTypeCounts)
}

func TestAggregateEvaluations_EmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		evals []domain.JudgeEvaluation
	}{
		{name: "nil slice", evals: nil},
		{name: "empty slice", evals: []domain.JudgeEvaluation{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := AggregateEvaluations(tt.evals)
			require.ErrorIs(t, err, domain.ErrEmptyResultSet)
			assert.Zero(t, result.RunCount)
		})
	}
}

func TestAggregateEvaluations_Rules(t *testing.T) {
	tests := []struct {
		name        string
		evals       []domain.JudgeEvaluation
		wantRank    *float64
		wantRate    float64
		wantNeutral float64
	}{
		{
			name: "rank ignored when brand not mentioned",
			evals: []domain.JudgeEvaluation{
				{IsMentioned: false, RankPosition: domain.Rank(1)},
				{IsMentioned: true, RankPosition: domain.Rank(3)},
			},
			wantRank:    ptrFloat(3),
			wantRate:    0.5,
			wantNeutral: 1,
		},
		{
			name: "mention without rank does not affect average",
			evals: []domain.JudgeEvaluation{
				{IsMentioned: true},
				{IsMentioned: true, RankPosition: domain.Rank(2)},
				{IsMentioned: true, RankPosition: domain.Rank(4)},
			},
			wantRank:    ptrFloat(3),
			wantRate:    1,
			wantNeutral: 1,
		},
		{
			name: "no ranked mention leaves average nil",
			evals: []domain.JudgeEvaluation{
				{IsMentioned: true, Sentiment: domain.SentimentNegative},
				{IsMentioned: false, Sentiment: domain.SentimentNeutral},
			},
			wantRank:    nil,
			wantRate:    0.5,
			wantNeutral: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := AggregateEvaluations(tt.evals)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRate, result.MentionRate, 1e-12)
			assert.InDelta(t, tt.wantNeutral, result.SentimentDistribution.Neutral, 1e-12)
			if tt.wantRank == nil {
				assert.Nil(t, result.AverageRankPosition)
				return
			}
			require.NotNil(t, result.AverageRankPosition)
			assert.InDelta(t, *tt.wantRank, *result.AverageRankPosition, 1e-12)
		})
	}
}

func ptrFloat(f float64) *float64 { return &f }

func TestWilsonInterval(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		n         int
		z         float64
		wantLower float64
		wantUpper float64
	}{
		{name: "seven of ten", successes: 7, n: 10, z: 1.96, wantLower: 0.396773, wantUpper: 0.892211},
		{name: "three of five", successes: 3, n: 5, z: 1.96, wantLower: 0.230720, wantUpper: 0.882382},
		{name: "zero of one", successes: 0, n: 1, z: 1.96, wantLower: 0, wantUpper: 0.793457},
		{name: "one of one", successes: 1, n: 1, z: 1.96, wantLower: 0.206543, wantUpper: 1},
		{name: "none of ten", successes: 0, n: 10, z: 1.96, wantLower: 0, wantUpper: 0.277540},
		{name: "all of ten", successes: 10, n: 10, z: 1.96, wantLower: 0.722460, wantUpper: 1},
		{name: "wider quantile", successes: 7, n: 10, z: 2.576, wantLower: 0.320006, wantUpper: 0.920440},
		{name: "no trials", successes: 0, n: 0, z: 1.96, wantLower: 0, wantUpper: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci := WilsonInterval(tt.successes, tt.n, tt.z)
			assert.InDelta(t, tt.wantLower, ci.Lower, 1e-6)
			assert.InDelta(t, tt.wantUpper, ci.Upper, 1e-6)
		})
	}
}

// randomEvaluations builds a non-empty evaluation list from a seed.
func randomEvaluations(rng *rand.Rand) []domain.JudgeEvaluation {
	mentionTypes := []domain.MentionType{domain.MentionDirect, domain.MentionAlias, domain.MentionImplied, domain.MentionNone, ""}
	sentiments := []domain.Sentiment{domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative, ""}

	n := 1 + rng.Intn(40)
	evals := make([]domain.JudgeEvaluation, n)
	for i := range evals {
		e := domain.JudgeEvaluation{
			IsMentioned:   rng.Intn(2) == 0,
			MentionType:   mentionTypes[rng.Intn(len(mentionTypes))],
			IndustryMatch: rng.Intn(2) == 0,
			LocationMatch: rng.Intn(2) == 0,
			Sentiment:     sentiments[rng.Intn(len(sentiments))],
		}
		if rng.Intn(3) > 0 {
			e.RankPosition = domain.Rank(1 + rng.Intn(10))
		}
		evals[i] = e
	}
	return evals
}

func TestAggregateEvaluations_Properties(t *testing.T) {
	cfg := &quick.Config{MaxCount: 500}

	t.Run("rates and interval stay in range", func(t *testing.T) {
		err := quick.Check(func(seed int64) bool {
			result, err := AggregateEvaluations(randomEvaluations(rand.New(rand.NewSource(seed))))
			if err != nil {
				return false
			}
			ci := result.ConfidenceInterval
			inUnit := func(f float64) bool { return f >= 0 && f <= 1 }
			return inUnit(result.MentionRate) &&
				inUnit(result.IndustryMatchRate) &&
				inUnit(result.LocationMatchRate) &&
				ci.Lower >= 0 && ci.Upper <= 1 &&
				ci.Lower <= result.MentionRate && result.MentionRate <= ci.Upper
		}, cfg)
		assert.NoError(t, err)
	})

	t.Run("sentiment distribution sums to one", func(t *testing.T) {
		err := quick.Check(func(seed int64) bool {
			result, err := AggregateEvaluations(randomEvaluations(rand.New(rand.NewSource(seed))))
			if err != nil {
				return false
			}
			return math.Abs(result.SentimentDistribution.Sum()-1) < 1e-9
		}, cfg)
		assert.NoError(t, err)
	})

	t.Run("repeated calls are identical", func(t *testing.T) {
		err := quick.Check(func(seed int64) bool {
			evals := randomEvaluations(rand.New(rand.NewSource(seed)))
			first, err1 := AggregateEvaluations(evals)
			second, err2 := AggregateEvaluations(evals)
			return err1 == nil && err2 == nil && assert.ObjectsAreEqual(first, second)
		}, cfg)
		assert.NoError(t, err)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		err := quick.Check(func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			evals := randomEvaluations(rng)
			shuffled := append([]domain.JudgeEvaluation(nil), evals...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			a, err1 := AggregateEvaluations(evals)
			b, err2 := AggregateEvaluations(shuffled)
			return err1 == nil && err2 == nil && assert.ObjectsAreEqual(a, b)
		}, cfg)
		assert.NoError(t, err)
	})
}

func TestNewJudgeAggregatorUnit(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		config  JudgeAggregatorConfig
		wantErr error
		errText string
	}{
		{name: "valid default config", unit: "agg", config: DefaultJudgeAggregatorConfig()},
		{name: "empty name", unit: "", config: DefaultJudgeAggregatorConfig(), wantErr: ErrEmptyUnitName},
		{name: "zero quantile", unit: "agg", config: JudgeAggregatorConfig{}, errText: "configuration validation failed"},
		{name: "quantile too large", unit: "agg", config: JudgeAggregatorConfig{ConfidenceZ: 9}, errText: "configuration validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewJudgeAggregatorUnit(tt.unit, tt.config)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, unit)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.unit, unit.Name())
				assert.NoError(t, unit.Validate())
			}
		})
	}
}

func TestJudgeAggregatorUnit_Execute(t *testing.T) {
	unit, err := NewJudgeAggregatorUnit("agg", DefaultJudgeAggregatorConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("writes aggregated result", func(t *testing.T) {
		state := domain.With(domain.NewState(), domain.KeyEvaluations, scenarioAEvaluations())

		out, err := unit.Execute(ctx, state)
		require.NoError(t, err)

		result, ok := domain.Get(out, domain.KeyAggregatedResult)
		require.True(t, ok)
		assert.InDelta(t, 0.7, result.MentionRate, 1e-12)

		_, ok = domain.Get(state, domain.KeyAggregatedResult)
		assert.False(t, ok, "input state must not be modified")
	})

	t.Run("missing evaluations", func(t *testing.T) {
		_, err := unit.Execute(ctx, domain.NewState())
		require.ErrorIs(t, err, domain.ErrKeyNotFound)

		var stateErr *domain.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.KeyEvaluations.Name(), stateErr.Key)
	})

	t.Run("empty evaluations", func(t *testing.T) {
		state := domain.With(domain.NewState(), domain.KeyEvaluations, []domain.JudgeEvaluation{})
		_, err := unit.Execute(ctx, state)
		require.ErrorIs(t, err, domain.ErrEmptyResultSet)
	})
}

func TestCreateJudgeAggregatorUnit(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantZ   float64
		wantErr bool
	}{
		{name: "nil config uses defaults", config: nil, wantZ: DefaultConfidenceZ},
		{name: "overrides quantile", config: map[string]any{"confidence_z": 2.576}, wantZ: 2.576},
		{name: "rejects unknown key", config: map[string]any{"confidence": 2.0}, wantErr: true},
		{name: "rejects invalid quantile", config: map[string]any{"confidence_z": -1.0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := CreateJudgeAggregatorUnit("agg", tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantZ, unit.config.ConfidenceZ, 1e-12)
		})
	}
}
