package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// ScanRequest is what the scan orchestrator supplies: the brand, the
// competitors to compare against and the prompts that were tested.
type ScanRequest struct {
	// ScanID is the caller's identifier for the scan. Optional.
	ScanID string `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	// BrandName is the business whose visibility is being scored.
	BrandName string `json:"brand_name" yaml:"brand_name" validate:"required"`
	// Competitors are reported in this order.
	Competitors []string `json:"competitors" yaml:"competitors" validate:"dive,required"`
	// PromptIDs name the prompts to fetch from the evaluation source.
	PromptIDs []string `json:"prompt_ids" yaml:"prompt_ids" validate:"unique,dive,required"`
}

// PromptReport is the per-prompt part of a ScanReport.
type PromptReport struct {
	PromptID string `json:"prompt_id"`
	// Evidence is the variant used for brand counting.
	Evidence domain.EvidenceKind `json:"evidence"`
	// Result aggregates every judge pass, including single-pass prompts.
	Result domain.AggregatedVisibilityResult `json:"result"`
	// Competitors holds the detections merged across the prompt's answers.
	Competitors []domain.CompetitorDetection `json:"competitors"`
	// Brand is the textual detection of the brand, a cross-check on the
	// judges.
	Brand *domain.CompetitorDetection `json:"brand,omitempty"`
}

// FailedPrompt records a prompt that was left out of the rollup.
type FailedPrompt struct {
	PromptID string `json:"prompt_id"`
	Reason   string `json:"reason"`
}

// ScanReport is the complete result of scoring one scan.
type ScanReport struct {
	// ID uniquely identifies this report.
	ID          string    `json:"id"`
	ScanID      string    `json:"scan_id,omitempty"`
	BrandName   string    `json:"brand_name"`
	GeneratedAt time.Time `json:"generated_at"`
	// Prompts lists scored prompts in request order.
	Prompts []PromptReport `json:"prompts"`
	// FailedPrompts lists prompts excluded from the rollup, in request order.
	FailedPrompts []FailedPrompt `json:"failed_prompts"`
	// ShareOfVoice is the scan-level comparison.
	ShareOfVoice domain.ShareOfVoice `json:"share_of_voice"`
}

// State keys private to the scan pipeline.
var (
	keyPromptReports = domain.NewKey[[]PromptReport]("scan.prompt_reports")
	keyFailedPrompts = domain.NewKey[[]FailedPrompt]("scan.failed_prompts")
	keyPromptIDs     = domain.NewKey[[]string]("scan.prompt_ids")
)

// requestValidator validates ScanRequest values.
var requestValidator = validator.New()

// ScanScorer scores scans. For each prompt it fetches the judge runs, runs
// the judge aggregator and competitor detector concurrently, then rolls
// every prompt up into a share of voice.
//
// A ScanScorer is safe for concurrent use; each Score call is independent.
type ScanScorer struct {
	source   ports.EvaluationSource
	cfg      ScoringConfig
	registry ports.UnitRegistry
	metrics  ports.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
	wrap     []func(ports.Unit) ports.Unit

	// pipeline runs the prompt fan-out and then the rollup.
	pipeline *Pipeline
	// promptLayer runs the aggregator and detector for one prompt.
	promptLayer *Layer
}

// ScorerOption customizes a ScanScorer.
type ScorerOption func(*ScanScorer)

// WithMetrics sets the collector for scoring metrics.
func WithMetrics(m ports.MetricsCollector) ScorerOption {
	return func(s *ScanScorer) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ScorerOption {
	return func(s *ScanScorer) { s.logger = l }
}

// WithClock sets the time source used for GeneratedAt and latencies.
func WithClock(now func() time.Time) ScorerOption {
	return func(s *ScanScorer) { s.now = now }
}

// WithIDGenerator sets the report ID generator. Defaults to random UUIDs.
func WithIDGenerator(newID func() string) ScorerOption {
	return func(s *ScanScorer) { s.newID = newID }
}

// WithUnitRegistry sets the registry the scorer builds its units from.
// Registering a custom factory under a built-in type replaces that step.
func WithUnitRegistry(r ports.UnitRegistry) ScorerOption {
	return func(s *ScanScorer) { s.registry = r }
}

// WithUnitMiddleware wraps every unit the scorer builds. Wrappers apply in
// order, so the last one is outermost.
func WithUnitMiddleware(wrap func(ports.Unit) ports.Unit) ScorerOption {
	return func(s *ScanScorer) { s.wrap = append(s.wrap, wrap) }
}

// NewScanScorer validates cfg and builds the scoring units.
func NewScanScorer(source ports.EvaluationSource, cfg ScoringConfig, opts ...ScorerOption) (*ScanScorer, error) {
	if source == nil {
		return nil, fmt.Errorf("evaluation source cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	s := &ScanScorer{
		source:  source,
		cfg:     cfg,
		metrics: noopMetrics{},
		logger:  slog.Default(),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		tracer:  otel.Tracer("scan-scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewDefaultUnitRegistry()
	}

	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// build creates the units through the registry and assembles the
// per-prompt layer and the scan pipeline.
func (s *ScanScorer) build() error {
	aggregator, err := s.registry.CreateUnit(UnitTypeJudgeAggregator, "aggregate", s.cfg.aggregatorParams())
	if err != nil {
		return err
	}
	detector, err := s.registry.CreateUnit(UnitTypeCompetitorDetector, "detect", s.cfg.detectorParams())
	if err != nil {
		return err
	}
	rollup, err := s.registry.CreateUnit(UnitTypeVisibilityRollup, "rollup", s.cfg.rollupParams())
	if err != nil {
		return err
	}
	aggregator, detector, rollup = s.wrapUnit(aggregator), s.wrapUnit(detector), s.wrapUnit(rollup)

	s.promptLayer = NewLayer("prompt")
	for _, u := range []ports.Unit{aggregator, detector} {
		if err := s.promptLayer.Add(NewUnitAdapter(u, u.Name())); err != nil {
			return err
		}
	}

	s.pipeline = NewPipeline("scan")
	if err := s.pipeline.Add(&promptFanOut{scorer: s}); err != nil {
		return err
	}
	return s.pipeline.Add(NewUnitAdapter(rollup, rollup.Name()))
}

func (s *ScanScorer) wrapUnit(u ports.Unit) ports.Unit {
	for _, w := range s.wrap {
		u = w(u)
	}
	return u
}

// Config returns the scorer's configuration.
func (s *ScanScorer) Config() ScoringConfig { return cloneConfig(s.cfg) }

// Score scores every prompt in req and rolls them up.
//
// Prompts for which the source has no runs, or whose runs fail
// validation, are listed in FailedPrompts and excluded from the rollup.
// Any other source error aborts the scan. Cancelling ctx aborts
// outstanding prompt work and discards partial results.
func (s *ScanScorer) Score(ctx context.Context, req ScanRequest) (*ScanReport, error) {
	ctx, span := s.tracer.Start(ctx, "ScanScorer.Score",
		trace.WithAttributes(
			attribute.String("scan.id", req.ScanID),
			attribute.String("scan.brand", req.BrandName),
			attribute.Int("scan.prompts", len(req.PromptIDs)),
			attribute.Int("scan.competitors", len(req.Competitors)),
		),
	)
	defer span.End()

	if err := requestValidator.Struct(req); err != nil {
		err = fmt.Errorf("invalid scan request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := s.now()
	logger := s.logger.With("scan_id", req.ScanID, "brand", req.BrandName)

	state := domain.NewState().WithMultiple(map[string]any{
		domain.KeyScanID.Name():      req.ScanID,
		domain.KeyBrandName.Name():   req.BrandName,
		domain.KeyCompetitors.Name(): append([]string(nil), req.Competitors...),
		keyPromptIDs.Name():          append([]string(nil), req.PromptIDs...),
	})

	out, err := s.pipeline.Execute(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("scan scoring failed", "error", err)
		return nil, fmt.Errorf("score scan %q: %w", req.ScanID, err)
	}

	sov, ok := domain.Get(out, domain.KeyShareOfVoice)
	if !ok || sov == nil {
		return nil, domain.NewStateError(domain.KeyShareOfVoice.Name(), "Get", domain.ErrKeyNotFound)
	}
	prompts, _ := domain.Get(out, keyPromptReports)
	failed, _ := domain.Get(out, keyFailedPrompts)
	if prompts == nil {
		prompts = []PromptReport{}
	}
	if failed == nil {
		failed = []FailedPrompt{}
	}

	report := &ScanReport{
		ID:            s.newID(),
		ScanID:        req.ScanID,
		BrandName:     req.BrandName,
		GeneratedAt:   s.now().UTC(),
		Prompts:       prompts,
		FailedPrompts: failed,
		ShareOfVoice:  *sov,
	}

	labels := map[string]string{"unit": "scan_scorer"}
	s.metrics.RecordLatency(ports.MetricScanLatency, s.now().Sub(start), labels)
	s.metrics.RecordGauge(ports.MetricBrandShare, sov.BrandShare, labels)

	span.SetAttributes(
		attribute.Int("scan.prompts_scored", len(prompts)),
		attribute.Int("scan.prompts_failed", len(failed)),
		attribute.Float64("scan.brand_share", sov.BrandShare),
	)
	logger.Info("scan scored",
		"report_id", report.ID,
		"prompts_scored", len(prompts),
		"prompts_failed", len(failed),
		"brand_mention_rate", sov.BrandMentionRate,
		"brand_share", sov.BrandShare,
	)

	return report, nil
}

// errPromptSkipped marks a prompt that is excluded from the rollup without
// failing the scan.
type errPromptSkipped struct{ err error }

func (e *errPromptSkipped) Error() string { return e.err.Error() }
func (e *errPromptSkipped) Unwrap() error { return e.err }

// scorePrompt fetches one prompt's runs and runs the prompt layer on them.
func (s *ScanScorer) scorePrompt(ctx context.Context, base domain.State, promptID string) (PromptReport, domain.PromptOutcome, error) {
	runs, err := s.source.FetchRuns(ctx, promptID)
	if err != nil {
		return PromptReport{}, domain.PromptOutcome{}, err
	}
	if len(runs) == 0 {
		return PromptReport{}, domain.PromptOutcome{}, &errPromptSkipped{err: domain.ErrEmptyResultSet}
	}

	evaluations := make([]domain.JudgeEvaluation, len(runs))
	answers := make([]string, 0, len(runs))
	for i, run := range runs {
		if err := run.Evaluation.Validate(); err != nil {
			return PromptReport{}, domain.PromptOutcome{}, &errPromptSkipped{err: fmt.Errorf("run %d: %w", i, err)}
		}
		evaluations[i] = run.Evaluation
		if run.AnswerText != "" {
			answers = append(answers, run.AnswerText)
		}
	}

	state := base.WithMultiple(map[string]any{
		domain.KeyPromptID.Name():    promptID,
		domain.KeyEvaluations.Name(): evaluations,
		domain.KeyAnswerTexts.Name(): answers,
	})

	out, err := s.promptLayer.Execute(ctx, state)
	if err != nil {
		return PromptReport{}, domain.PromptOutcome{}, err
	}

	result, ok := domain.Get(out, domain.KeyAggregatedResult)
	if !ok || result == nil {
		return PromptReport{}, domain.PromptOutcome{}, domain.NewStateError(domain.KeyAggregatedResult.Name(), "Get", domain.ErrKeyNotFound)
	}
	detections, _ := domain.Get(out, domain.KeyCompetitorDetections)
	brand, _ := domain.Get(out, domain.KeyBrandDetection)

	var evidence domain.PromptEvidence
	if len(evaluations) == 1 && s.cfg.Aggregation.MinRuns > 1 {
		evidence = domain.SingleRunEvidence{Evaluation: evaluations[0]}
	} else {
		evidence = domain.AggregatedEvidence{Result: *result}
	}

	report := PromptReport{
		PromptID:    promptID,
		Evidence:    evidence.Kind(),
		Result:      *result,
		Competitors: detections,
		Brand:       brand,
	}
	outcome := domain.PromptOutcome{
		PromptID:   promptID,
		Evidence:   evidence,
		Detections: detections,
	}
	return report, outcome, nil
}

// promptFanOut is the first pipeline stage. It scores every prompt
// concurrently and writes the joined outcomes, in request order, for the
// rollup stage.
type promptFanOut struct {
	scorer *ScanScorer
}

func (f *promptFanOut) ID() string { return "prompts" }

func (f *promptFanOut) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	s := f.scorer
	promptIDs, _ := domain.Get(state, keyPromptIDs)

	reports := make([]*PromptReport, len(promptIDs))
	outcomes := make([]*domain.PromptOutcome, len(promptIDs))
	failures := make([]*FailedPrompt, len(promptIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency.MaxParallelPrompts)

	for i, promptID := range promptIDs {
		g.Go(func() error {
			start := s.now()
			report, outcome, err := s.scorePrompt(gctx, state, promptID)
			labels := map[string]string{"unit": "scan_scorer"}
			s.metrics.RecordLatency(ports.MetricPromptLatency, s.now().Sub(start), labels)

			var skipped *errPromptSkipped
			switch {
			case errors.As(err, &skipped):
				failures[i] = &FailedPrompt{PromptID: promptID, Reason: skipped.err.Error()}
				s.metrics.RecordCounter(ports.MetricPromptsFailed, 1, labels)
				s.logger.Warn("prompt excluded from rollup", "prompt_id", promptID, "reason", skipped.err)
				return nil
			case err != nil:
				return fmt.Errorf("prompt %s: %w", promptID, err)
			}

			reports[i] = &report
			outcomes[i] = &outcome
			s.metrics.RecordCounter(ports.MetricPromptsScored, 1, labels)
			s.metrics.RecordHistogram(ports.MetricPromptMentionRate, report.Result.MentionRate, labels)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return state, err
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	joinedReports := make([]PromptReport, 0, len(promptIDs))
	joinedOutcomes := make([]domain.PromptOutcome, 0, len(promptIDs))
	joinedFailures := make([]FailedPrompt, 0)
	for i := range promptIDs {
		switch {
		case failures[i] != nil:
			joinedFailures = append(joinedFailures, *failures[i])
		case reports[i] != nil:
			joinedReports = append(joinedReports, *reports[i])
			joinedOutcomes = append(joinedOutcomes, *outcomes[i])
		}
	}

	return state.WithMultiple(map[string]any{
		keyPromptReports.Name():         joinedReports,
		keyFailedPrompts.Name():         joinedFailures,
		domain.KeyPromptOutcomes.Name(): joinedOutcomes,
	}), nil
}

// noopMetrics discards metrics when no collector is configured.
type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)     {}
