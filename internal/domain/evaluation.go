package domain

import "fmt"

// MentionType classifies how a judge saw the brand referenced in an answer.
type MentionType string

// Mention types reported by the judge collaborator.
const (
	// MentionDirect means the brand is named verbatim.
	MentionDirect MentionType = "direct"

	// MentionAlias means the brand is referenced by an alternate or short name.
	MentionAlias MentionType = "alias"

	// MentionImplied means the answer describes the brand without naming it.
	MentionImplied MentionType = "implied"

	// MentionNone means the brand does not appear.
	MentionNone MentionType = "none"
)

// Sentiment is the tone a judge attributed to the brand's mention.
// The zero value means the judge did not report a sentiment.
type Sentiment string

// Sentiment values reported by the judge collaborator.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// JudgeEvaluation is one judge pass over an AI answer for a single prompt.
// Repeated passes over the same prompt are independent samples and are
// collapsed by the judge aggregator.
type JudgeEvaluation struct {
	// IsMentioned reports whether the judge found the brand in the answer.
	IsMentioned bool `json:"is_mentioned" yaml:"is_mentioned"`

	// MentionType describes how the brand was referenced.
	MentionType MentionType `json:"mention_type" yaml:"mention_type"`

	// RankPosition is the brand's 1-based position in a ranked answer.
	// Only meaningful when IsMentioned is true.
	RankPosition *int `json:"rank_position,omitempty" yaml:"rank_position,omitempty"`

	// IndustryMatch reports whether the answer placed the brand in the
	// expected industry.
	IndustryMatch bool `json:"industry_match" yaml:"industry_match"`

	// LocationMatch reports whether the answer placed the brand in the
	// expected location.
	LocationMatch bool `json:"location_match" yaml:"location_match"`

	// Sentiment is the tone of the mention. Empty counts as neutral.
	Sentiment Sentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
}

// HasRank reports whether the evaluation carries a usable rank, i.e. the
// brand was mentioned and a rank was recorded.
func (e JudgeEvaluation) HasRank() bool {
	return e.IsMentioned && e.RankPosition != nil
}

// Validate checks the enumerations and rank bounds of the evaluation.
// The aggregator itself does not validate; callers run this on data
// received from the judge collaborator.
func (e JudgeEvaluation) Validate() error {
	verr := NewValidationError("JudgeEvaluation")
	switch e.MentionType {
	case MentionDirect, MentionAlias, MentionImplied, MentionNone, "":
	default:
		verr.AddError(fmt.Sprintf("unknown mention_type %q", e.MentionType))
	}
	switch e.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative, "":
	default:
		verr.AddError(fmt.Sprintf("unknown sentiment %q", e.Sentiment))
	}
	if e.RankPosition != nil && *e.RankPosition < 1 {
		verr.AddError(fmt.Sprintf("rank_position must be >= 1, got %d", *e.RankPosition))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// JudgeRun pairs one judge evaluation with the raw answer text it judged.
type JudgeRun struct {
	Evaluation JudgeEvaluation `json:"evaluation" yaml:"evaluation"`
	AnswerText string          `json:"answer_text" yaml:"answer_text"`
}

// Rank returns a pointer to rank, for building evaluations and detections
// with a known rank position.
func Rank(rank int) *int { return &rank }
