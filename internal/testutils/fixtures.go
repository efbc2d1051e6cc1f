// Package testutils provides fixtures and fakes shared by tests across the
// module.
package testutils

import "github.com/ahrav/go-geoscore/internal/domain"

// Mentioned returns a run in which the judge found the brand at rank.
// A rank of zero leaves the rank unset.
func Mentioned(answer string, rank int) domain.JudgeRun {
	eval := domain.JudgeEvaluation{
		IsMentioned:   true,
		MentionType:   domain.MentionDirect,
		IndustryMatch: true,
		Sentiment:     domain.SentimentPositive,
	}
	if rank > 0 {
		eval.RankPosition = domain.Rank(rank)
	}
	return domain.JudgeRun{Evaluation: eval, AnswerText: answer}
}

// Absent returns a run in which the judge did not find the brand.
func Absent(answer string) domain.JudgeRun {
	return domain.JudgeRun{
		Evaluation: domain.JudgeEvaluation{
			MentionType: domain.MentionNone,
			Sentiment:   domain.SentimentNeutral,
		},
		AnswerText: answer,
	}
}

// ScenarioBrand is the brand of the reference scan served by
// ScenarioCSource.
const ScenarioBrand = "Acme"

// ScenarioCompetitors are the competitors of the reference scan.
func ScenarioCompetitors() []string { return []string{"Foo", "Bar"} }

// ScenarioCSource returns a source for the reference share-of-voice scan
// over five prompts. The judges find the brand on p1, p2 and p3. Foo
// appears in the answers of p1 (rank 2) and p2 (rank 1); Bar appears in
// none.
func ScenarioCSource() *MockEvaluationSource {
	src := NewMockEvaluationSource()
	src.SetRuns("p1",
		Mentioned("1. Acme\n2. Foo", 1),
		Mentioned("1. Acme\n2. Foo", 1),
	)
	src.SetRuns("p2",
		Mentioned("1. Foo\n2. Acme", 2),
		Mentioned("1. Foo\n2. Acme", 2),
	)
	src.SetRuns("p3",
		Mentioned("Acme is a solid choice.", 0),
		Mentioned("Acme is a solid choice.", 0),
	)
	src.SetRuns("p4",
		Absent("There is no clear leader."),
		Absent("There is no clear leader."),
	)
	src.SetRuns("p5",
		Absent("It depends on your budget."),
		Absent("It depends on your budget."),
	)
	return src
}

// ScenarioCPromptIDs lists the prompts served by ScenarioCSource.
func ScenarioCPromptIDs() []string {
	return []string{"p1", "p2", "p3", "p4", "p5"}
}
