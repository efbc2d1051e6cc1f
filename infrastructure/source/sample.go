package source

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ahrav/go-geoscore/internal/domain"
)

// SampleOptions controls GenerateSampleScan.
type SampleOptions struct {
	Brand         string
	Competitors   []string
	Prompts       int
	RunsPerPrompt int
}

// DefaultSampleOptions returns options for a small synthetic scan.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Brand:         "Acme",
		Competitors:   []string{"Foo", "Bar", "Baz"},
		Prompts:       10,
		RunsPerPrompt: 3,
	}
}

var sampleQuestions = []string{
	"What is the best %s for a small business?",
	"Which %s do you recommend in 2026?",
	"Compare the top %s options.",
	"What %s should a startup use?",
}

var sampleCategories = []string{"CRM", "help desk", "invoicing tool", "project tracker"}

// GenerateSampleScan builds a synthetic scan whose judge evaluations agree
// with the answers they grade. The same seed yields the same scan.
func GenerateSampleScan(opts SampleOptions, seed int64) *ScanInput {
	rng := rand.New(rand.NewSource(seed))

	in := &ScanInput{
		ScanID:      fmt.Sprintf("sample-%d", seed),
		Brand:       opts.Brand,
		Competitors: append([]string(nil), opts.Competitors...),
		Prompts:     make([]PromptInput, 0, opts.Prompts),
	}

	candidates := append([]string{opts.Brand}, opts.Competitors...)
	for i := range opts.Prompts {
		category := sampleCategories[rng.Intn(len(sampleCategories))]
		p := PromptInput{
			ID:   fmt.Sprintf("prompt-%03d", i+1),
			Text: fmt.Sprintf(sampleQuestions[rng.Intn(len(sampleQuestions))], category),
			Runs: make([]RunInput, 0, opts.RunsPerPrompt),
		}
		for range opts.RunsPerPrompt {
			p.Runs = append(p.Runs, sampleRun(rng, opts.Brand, candidates, category))
		}
		in.Prompts = append(in.Prompts, p)
	}

	return in
}

func sampleRun(rng *rand.Rand, brand string, candidates []string, category string) RunInput {
	order := append([]string(nil), candidates...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	listed := order[:rng.Intn(len(order)+1)]

	var answer strings.Builder
	if len(listed) == 0 {
		fmt.Fprintf(&answer, "There is no single best %s; it depends on your needs.", category)
	} else {
		fmt.Fprintf(&answer, "Here are some popular %s options:\n", category)
		for i, name := range listed {
			fmt.Fprintf(&answer, "%d. %s\n", i+1, name)
		}
	}

	eval := domain.JudgeEvaluation{MentionType: domain.MentionNone, Sentiment: domain.SentimentNeutral}
	for i, name := range listed {
		if name != brand {
			continue
		}
		sentiments := []domain.Sentiment{domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative}
		eval = domain.JudgeEvaluation{
			IsMentioned:   true,
			MentionType:   domain.MentionDirect,
			RankPosition:  domain.Rank(i + 1),
			IndustryMatch: true,
			Sentiment:     sentiments[rng.Intn(len(sentiments))],
		}
		break
	}

	return RunInput{Answer: answer.String(), Evaluation: eval}
}
