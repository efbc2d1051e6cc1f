package domain

// ConfidenceInterval is a two-sided interval around a proportion.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether p lies inside the closed interval.
func (ci ConfidenceInterval) Contains(p float64) bool {
	return ci.Lower <= p && p <= ci.Upper
}

// SentimentDistribution holds the fraction of judge passes per sentiment.
// The three fractions sum to 1 for any non-empty set of passes.
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Sum returns the total of all buckets.
func (d SentimentDistribution) Sum() float64 {
	return d.Positive + d.Neutral + d.Negative
}

// AggregatedVisibilityResult is the statistically qualified view of all
// judge passes for one prompt. It is derived fresh from a list of
// JudgeEvaluation values and is never mutated afterwards.
type AggregatedVisibilityResult struct {
	// MentionRate is the fraction of passes that found the brand.
	MentionRate float64 `json:"mention_rate"`

	// AverageRankPosition is the mean rank across mentioned passes that
	// recorded a rank. Nil when no such pass exists.
	AverageRankPosition *float64 `json:"average_rank_position"`

	// IndustryMatchRate is the fraction of all passes with an industry match.
	IndustryMatchRate float64 `json:"industry_match_rate"`

	// LocationMatchRate is the fraction of all passes with a location match.
	LocationMatchRate float64 `json:"location_match_rate"`

	// SentimentDistribution splits all passes by sentiment.
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`

	// ConfidenceInterval is the Wilson score interval around MentionRate.
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`

	// RunCount is the number of judge passes aggregated. Always >= 1.
	RunCount int `json:"run_count"`

	// MentionTypeCounts counts passes per mention type. Passes without a
	// mention type are counted as MentionNone.
	MentionTypeCounts map[MentionType]int `json:"mention_type_counts"`
}
