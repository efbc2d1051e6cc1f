package domain

// CompetitorDetection records whether one competitor appears in one answer,
// and where it ranks when the answer enumerates options.
type CompetitorDetection struct {
	CompetitorName string `json:"competitor_name"`
	Mentioned      bool   `json:"mentioned"`

	// RankPosition is the 1-based index of the first list item naming the
	// competitor. Nil when the competitor only appears in prose.
	RankPosition *int `json:"rank_position,omitempty"`
}

// CompetitorMentionSummary rolls one competitor's detections up across
// every prompt of a scan.
type CompetitorMentionSummary struct {
	CompetitorName string `json:"competitor_name"`

	// IsMentioned is true when the competitor appeared for at least one prompt.
	IsMentioned bool `json:"is_mentioned"`

	// MentionCount is the number of prompts the competitor appeared for.
	MentionCount int `json:"mention_count"`

	// AverageRankPosition is the mean of all known ranks. Nil if none.
	AverageRankPosition *float64 `json:"average_rank_position"`

	// MentionRate is MentionCount divided by the number of prompts tested.
	MentionRate float64 `json:"mention_rate"`
}

// ShareOfVoice is the final per-scan comparison of brand and competitor
// mention frequency.
type ShareOfVoice struct {
	// BrandMentionRate is the fraction of tested prompts that counted the
	// brand as mentioned.
	BrandMentionRate float64 `json:"brand_mention_rate"`

	// BrandMentionInterval is the Wilson interval around BrandMentionRate
	// with prompts as trials.
	BrandMentionInterval ConfidenceInterval `json:"brand_mention_interval"`

	// TotalBrandMentions is the number of prompts that counted the brand.
	TotalBrandMentions int `json:"total_brand_mentions"`

	// TotalPromptsTested is the number of prompts that entered the rollup.
	TotalPromptsTested int `json:"total_prompts_tested"`

	// TotalMentions is brand mentions plus every competitor's mention count.
	TotalMentions int `json:"total_mentions"`

	// BrandShare is the brand's percentage of TotalMentions in [0, 100].
	BrandShare float64 `json:"brand_share"`

	// CompetitorMentions lists one summary per competitor in scan order.
	CompetitorMentions []CompetitorMentionSummary `json:"competitor_mentions"`

	// TopCompetitors is CompetitorMentions ordered by MentionCount,
	// descending, ties kept in scan order, truncated to the requested size.
	TopCompetitors []CompetitorMentionSummary `json:"top_competitors"`
}
