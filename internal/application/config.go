package application

import (
	"time"

	"github.com/ahrav/go-geoscore/infrastructure/units"
)

// ScoringConfig is the root configuration for scoring scans. Every section
// has usable defaults, so an empty document is a valid configuration.
type ScoringConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning. Optional.
	Version string `yaml:"version,omitempty" json:"version,omitempty" validate:"omitempty,semver"`
	// Aggregation controls how repeated judge passes are collapsed.
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation"`
	// Detection controls competitor matching in raw answers.
	Detection DetectionConfig `yaml:"detection" json:"detection"`
	// Rollup controls the scan-level share-of-voice computation.
	Rollup RollupConfig `yaml:"rollup" json:"rollup"`
	// Concurrency bounds the per-prompt fan-out and source throughput.
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	// Source controls timeouts and retries around the evaluation source.
	Source SourceConfig `yaml:"source" json:"source"`
}

// AggregationConfig controls the judge aggregator.
type AggregationConfig struct {
	// ConfidenceZ is the normal quantile for Wilson intervals.
	ConfidenceZ float64 `yaml:"confidence_z" json:"confidence_z" validate:"gt=0,lte=5"`
	// MinRuns is the number of judge passes from which a prompt is
	// treated as aggregated evidence. With 2, a prompt judged once falls
	// back to its single evaluation; with 1, every prompt is aggregated.
	// Larger values would discard passes, so they are rejected.
	MinRuns int `yaml:"min_runs" json:"min_runs" validate:"min=1,max=2"`
}

// DetectionConfig controls competitor detection.
type DetectionConfig struct {
	// Strategies are OR-combined. Valid values: exact, normalized,
	// word_boundary, fuzzy.
	Strategies []string `yaml:"strategies" json:"strategies" validate:"required,min=1,unique,dive,matchstrategy"`
	// FuzzyThreshold is the minimum Levenshtein similarity for the fuzzy
	// strategy.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold" validate:"min=0,max=1"`
}

// RollupConfig controls the visibility rollup.
type RollupConfig struct {
	// MajorityThreshold is the mention rate at which a prompt counts as a
	// brand mention. It also decides when a competitor seen in only some
	// of a prompt's answers counts for that prompt.
	MajorityThreshold float64 `yaml:"majority_threshold" json:"majority_threshold" validate:"gt=0,lte=1"`
	// TopCompetitors caps the ranked competitor list. Zero keeps all.
	TopCompetitors int `yaml:"top_competitors" json:"top_competitors" validate:"min=0,max=1000"`
}

// ConcurrencyConfig bounds how much work a scan performs at once.
type ConcurrencyConfig struct {
	// MaxParallelPrompts limits how many prompts are scored concurrently.
	MaxParallelPrompts int `yaml:"max_parallel_prompts" json:"max_parallel_prompts" validate:"min=1,max=1024"`
	// SourceRPS throttles evaluation source fetches. Zero disables the limit.
	SourceRPS float64 `yaml:"source_rps" json:"source_rps" validate:"min=0"`
	// SourceBurst is the token bucket size for SourceRPS.
	SourceBurst int `yaml:"source_burst" json:"source_burst" validate:"min=0,max=10000"`
}

// SourceConfig controls the resilience middleware around the evaluation
// source. Zero values disable the corresponding middleware.
type SourceConfig struct {
	// Timeout bounds each FetchRuns call.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0s"`
	// MaxRetries is how many times an unavailable source is retried.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"min=0,max=10"`
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay" validate:"min=0s"`
	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" json:"retry_max_delay" validate:"min=0s"`
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker.
	BreakerFailures int `yaml:"breaker_failures" json:"breaker_failures" validate:"min=0"`
	// BreakerCooldown is how long an open breaker rejects calls.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown" validate:"min=0s"`
}

// DefaultScoringConfig returns the configuration used when none is given:
// 95% intervals, at least two passes for aggregation, the three
// recall-oriented match strategies, the majority rule and a top-5 list.
func DefaultScoringConfig() ScoringConfig {
	strategies := units.DefaultMatchStrategies()
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}

	return ScoringConfig{
		Aggregation: AggregationConfig{
			ConfidenceZ: units.DefaultConfidenceZ,
			MinRuns:     2,
		},
		Detection: DetectionConfig{
			Strategies:     names,
			FuzzyThreshold: units.DefaultFuzzyThreshold,
		},
		Rollup: RollupConfig{
			MajorityThreshold: units.DefaultMajorityThreshold,
			TopCompetitors:    units.DefaultTopCompetitors,
		},
		Concurrency: ConcurrencyConfig{
			MaxParallelPrompts: 8,
			SourceBurst:        1,
		},
		Source: SourceConfig{
			RetryBaseDelay:  100 * time.Millisecond,
			RetryMaxDelay:   2 * time.Second,
			BreakerCooldown: 30 * time.Second,
		},
	}
}

// Validate checks the configuration against its struct tags and the custom
// validation rules.
func (c ScoringConfig) Validate() error {
	return configValidator.Struct(c)
}

// aggregatorParams returns the judge_aggregator unit parameters.
func (c ScoringConfig) aggregatorParams() map[string]any {
	return map[string]any{
		"confidence_z": c.Aggregation.ConfidenceZ,
	}
}

// detectorParams returns the competitor_detector unit parameters.
func (c ScoringConfig) detectorParams() map[string]any {
	strategies := make([]any, len(c.Detection.Strategies))
	for i, s := range c.Detection.Strategies {
		strategies[i] = s
	}
	return map[string]any{
		"strategies":         strategies,
		"fuzzy_threshold":    c.Detection.FuzzyThreshold,
		"majority_threshold": c.Rollup.MajorityThreshold,
	}
}

// rollupParams returns the visibility_rollup unit parameters.
func (c ScoringConfig) rollupParams() map[string]any {
	return map[string]any{
		"majority_threshold": c.Rollup.MajorityThreshold,
		"top_competitors":    c.Rollup.TopCompetitors,
		"confidence_z":       c.Aggregation.ConfidenceZ,
	}
}
