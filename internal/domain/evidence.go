package domain

// EvidenceKind names the variant held by a PromptEvidence value.
type EvidenceKind string

// Evidence variants.
const (
	EvidenceAggregated EvidenceKind = "aggregated"
	EvidenceSingleRun  EvidenceKind = "single_run"
)

// PromptEvidence is the judge evidence that decides whether a prompt counts
// as a brand mention. It is a closed set of two variants:
//
//   - AggregatedEvidence: several judge passes collapsed into one result;
//     the prompt counts when the mention rate reaches the majority threshold.
//   - SingleRunEvidence: the prompt was judged once; its flag is used as is.
type PromptEvidence interface {
	Kind() EvidenceKind
	sealed()
}

// AggregatedEvidence carries the aggregated result of repeated judge passes.
type AggregatedEvidence struct {
	Result AggregatedVisibilityResult
}

// Kind implements PromptEvidence.
func (AggregatedEvidence) Kind() EvidenceKind { return EvidenceAggregated }

func (AggregatedEvidence) sealed() {}

// SingleRunEvidence carries the only judge pass made for a prompt.
type SingleRunEvidence struct {
	Evaluation JudgeEvaluation
}

// Kind implements PromptEvidence.
func (SingleRunEvidence) Kind() EvidenceKind { return EvidenceSingleRun }

func (SingleRunEvidence) sealed() {}

// PromptOutcome is everything the rollup needs to know about one tested
// prompt: its brand evidence and its competitor detections.
type PromptOutcome struct {
	PromptID   string
	Evidence   PromptEvidence
	Detections []CompetitorDetection
}
