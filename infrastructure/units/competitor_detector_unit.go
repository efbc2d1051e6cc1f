package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var _ ports.Unit = (*CompetitorDetectorUnit)(nil)

// Detection defaults.
const (
	DefaultFuzzyThreshold    = 0.9
	DefaultMajorityThreshold = 0.5
)

// CompetitorDetectorUnit scans raw AI answers for competitor names and
// infers each competitor's rank when the answer enumerates options.
//
// Matching favors recall: a competitor is mentioned when any configured
// strategy fires. Rank comes only from explicit list items, never from
// proximity in prose. When a prompt has several answers, a competitor is
// mentioned if it appears in at least MajorityThreshold of them, and its
// rank is the best rank any answer gave it.
type CompetitorDetectorUnit struct {
	name   string
	config CompetitorDetectorConfig
	tracer trace.Tracer
}

// CompetitorDetectorConfig controls competitor detection.
type CompetitorDetectorConfig struct {
	// Strategies are OR-combined. Defaults to exact, normalized and
	// word_boundary.
	Strategies []MatchStrategy `yaml:"strategies" json:"strategies" validate:"required,min=1,dive,oneof=exact normalized word_boundary fuzzy"`

	// FuzzyThreshold is the minimum similarity for the fuzzy strategy.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold" validate:"min=0,max=1"`

	// MajorityThreshold is the fraction of a prompt's answers that must
	// mention a competitor for the merged detection to count it.
	MajorityThreshold float64 `yaml:"majority_threshold" json:"majority_threshold" validate:"gt=0,lte=1"`
}

// DefaultCompetitorDetectorConfig returns the recall-oriented defaults.
func DefaultCompetitorDetectorConfig() CompetitorDetectorConfig {
	return CompetitorDetectorConfig{
		Strategies:        DefaultMatchStrategies(),
		FuzzyThreshold:    DefaultFuzzyThreshold,
		MajorityThreshold: DefaultMajorityThreshold,
	}
}

// NewCompetitorDetectorUnit creates a CompetitorDetectorUnit with a
// validated configuration.
func NewCompetitorDetectorUnit(name string, config CompetitorDetectorConfig) (*CompetitorDetectorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &CompetitorDetectorUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("competitor-detector-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *CompetitorDetectorUnit) Name() string { return u.name }

// Execute reads the answers under domain.KeyAnswerTexts and the scan's
// competitors and brand, then writes the merged competitor detections to
// domain.KeyCompetitorDetections and the brand's own detection to
// domain.KeyBrandDetection.
//
// Competitors and brand are optional; missing answers are an error.
func (u *CompetitorDetectorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	answers, ok := domain.Get(state, domain.KeyAnswerTexts)
	if !ok {
		return state, domain.NewStateError(domain.KeyAnswerTexts.Name(), "Get", domain.ErrKeyNotFound)
	}
	competitors, _ := domain.Get(state, domain.KeyCompetitors)
	brand, _ := domain.Get(state, domain.KeyBrandName)

	_, span := u.tracer.Start(ctx, "CompetitorDetectorUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "competitor_detector"),
			attribute.String("unit.id", u.name),
			attribute.String("scan.brand", brand),
			attribute.Int("detect.answers", len(answers)),
			attribute.Int("detect.competitors", len(competitors)),
		),
	)
	defer span.End()

	detections := u.DetectAll(answers, competitors)

	updates := map[string]any{
		domain.KeyCompetitorDetections.Name(): detections,
	}
	if brand != "" {
		brandDetection := u.DetectAll(answers, []string{brand})[0]
		updates[domain.KeyBrandDetection.Name()] = &brandDetection
		span.SetAttributes(attribute.Bool("detect.brand_mentioned", brandDetection.Mentioned))
	}

	mentioned := 0
	for _, d := range detections {
		if d.Mentioned {
			mentioned++
		}
	}
	span.SetAttributes(attribute.Int("detect.mentioned", mentioned))
	span.SetStatus(codes.Ok, "")

	return state.WithMultiple(updates), nil
}

// Detect checks a single answer against competitors with the unit's
// strategies.
func (u *CompetitorDetectorUnit) Detect(answer string, competitors []string) []domain.CompetitorDetection {
	return detect(newAnswerDoc(answer), competitors, u.config.Strategies, u.config.FuzzyThreshold)
}

// DetectAll checks every answer of one prompt and merges the per-answer
// detections by the unit's majority threshold.
func (u *CompetitorDetectorUnit) DetectAll(answers []string, competitors []string) []domain.CompetitorDetection {
	perAnswer := make([][]domain.CompetitorDetection, 0, len(answers))
	for _, answer := range answers {
		perAnswer = append(perAnswer, u.Detect(answer, competitors))
	}
	return MergeDetections(perAnswer, competitors, u.config.MajorityThreshold)
}

// Validate verifies the unit configuration.
func (u *CompetitorDetectorUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DetectCompetitors reports, for each competitor in order, whether answer
// mentions it and at which list position. It uses the default strategies.
// The brand is not needed to detect competitors; see DetectBrand.
func DetectCompetitors(answer string, competitors []string) []domain.CompetitorDetection {
	return detect(newAnswerDoc(answer), competitors, DefaultMatchStrategies(), DefaultFuzzyThreshold)
}

// DetectBrand runs the same textual detection for the brand itself. It is
// a cross-check on the judge, not a replacement for it.
func DetectBrand(answer, brand string) domain.CompetitorDetection {
	return DetectCompetitors(answer, []string{brand})[0]
}

func detect(doc *answerDoc, competitors []string, strategies []MatchStrategy, fuzzyThreshold float64) []domain.CompetitorDetection {
	detections := make([]domain.CompetitorDetection, 0, len(competitors))
	for _, name := range competitors {
		m := newNameMatcher(name)
		d := domain.CompetitorDetection{CompetitorName: name}
		if m.matches(doc, strategies, fuzzyThreshold) {
			d.Mentioned = true
			d.RankPosition = m.rank(doc)
		}
		detections = append(detections, d)
	}
	return detections
}

// MergeDetections folds per-answer detections for one prompt into one
// detection per competitor. perAnswer[i][j] must describe competitors[j].
// A competitor is mentioned when the fraction of answers mentioning it
// reaches threshold; its rank is the smallest rank any mentioning answer
// reported. With no answers nothing is mentioned.
func MergeDetections(perAnswer [][]domain.CompetitorDetection, competitors []string, threshold float64) []domain.CompetitorDetection {
	merged := make([]domain.CompetitorDetection, len(competitors))
	for j, name := range competitors {
		merged[j] = domain.CompetitorDetection{CompetitorName: name}
		if len(perAnswer) == 0 {
			continue
		}

		var hits int
		var best *int
		for _, detections := range perAnswer {
			if j >= len(detections) || !detections[j].Mentioned {
				continue
			}
			hits++
			if r := detections[j].RankPosition; r != nil && (best == nil || *r < *best) {
				best = domain.Rank(*r)
			}
		}

		if float64(hits)/float64(len(perAnswer)) >= threshold {
			merged[j].Mentioned = true
			merged[j].RankPosition = best
		}
	}
	return merged
}

// CreateCompetitorDetectorUnit is a factory function that creates a
// CompetitorDetectorUnit from a configuration map.
func CreateCompetitorDetectorUnit(id string, config map[string]any) (*CompetitorDetectorUnit, error) {
	cfg := DefaultCompetitorDetectorConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewCompetitorDetectorUnit(id, cfg)
}
