package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-geoscore/infrastructure/middleware"
	"github.com/ahrav/go-geoscore/infrastructure/source"
	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/logging"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var scoreFlags struct {
	file        string
	config      string
	top         int
	parallel    int
	output      string
	metricsFile string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a recorded scan",
	Long: `Reads a scan input file (YAML, or JSON by extension) holding the brand,
the competitors and every judge run per prompt, and prints the scan report.`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVarP(&scoreFlags.file, "file", "f", "", "Scan input file (required)")
	f.StringVarP(&scoreFlags.config, "config", "c", "", "Scoring config YAML")
	f.IntVar(&scoreFlags.top, "top", 0, "Override rollup.top_competitors")
	f.IntVar(&scoreFlags.parallel, "parallel", 0, "Override concurrency.max_parallel_prompts")
	f.StringVarP(&scoreFlags.output, "output", "o", "text", "Output format: text or json")
	f.StringVar(&scoreFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")

	_ = scoreCmd.MarkFlagRequired("file")
}

func runScore(cmd *cobra.Command, _ []string) error {
	if scoreFlags.output != "text" && scoreFlags.output != "json" {
		return fmt.Errorf("invalid output format %q: want text or json", scoreFlags.output)
	}

	cfg, err := loadConfig(scoreFlags.config)
	if err != nil {
		return err
	}
	if scoreFlags.top > 0 {
		cfg.Rollup.TopCompetitors = scoreFlags.top
	}
	if scoreFlags.parallel > 0 {
		cfg.Concurrency.MaxParallelPrompts = scoreFlags.parallel
	}

	in, err := source.LoadScanInput(scoreFlags.file)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	logger := logging.New("score")

	src := source.Wrap(source.NewMemorySource(in), cfg, metrics)
	scorer, err := application.NewScanScorer(src, cfg,
		application.WithMetrics(metrics),
		application.WithLogger(logger),
		application.WithUnitMiddleware(func(u ports.Unit) ports.Unit {
			return middleware.NewInstrumentedUnit(u, metrics)
		}),
	)
	if err != nil {
		return err
	}

	report, err := scorer.Score(cmd.Context(), in.Request())
	if err != nil {
		return err
	}

	if scoreFlags.metricsFile != "" {
		if err := prometheus.WriteToTextfile(scoreFlags.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Debug("metrics written", "path", scoreFlags.metricsFile)
	}

	out := cmd.OutOrStdout()
	if scoreFlags.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderReport(out, report)
}

func renderReport(w io.Writer, r *application.ScanReport) error {
	sov := r.ShareOfVoice

	fmt.Fprintf(w, "Scan:      %s\n", r.ScanID)
	fmt.Fprintf(w, "Report:    %s\n", r.ID)
	fmt.Fprintf(w, "Brand:     %s\n", r.BrandName)
	fmt.Fprintf(w, "Prompts:   %d scored, %d failed\n", sov.TotalPromptsTested, len(r.FailedPrompts))
	fmt.Fprintf(w, "Mentioned: %d/%d (%.1f%%, 95%% CI %.1f%%-%.1f%%)\n",
		sov.TotalBrandMentions, sov.TotalPromptsTested,
		sov.BrandMentionRate*100, sov.BrandMentionInterval.Lower*100, sov.BrandMentionInterval.Upper*100)
	fmt.Fprintf(w, "Share:     %.1f%% of %d mentions\n", sov.BrandShare, sov.TotalMentions)

	if len(sov.TopCompetitors) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COMPETITOR\tMENTIONS\tRATE\tAVG RANK")
		for _, c := range sov.TopCompetitors {
			rank := "-"
			if c.AverageRankPosition != nil {
				rank = fmt.Sprintf("%.2f", *c.AverageRankPosition)
			}
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", c.CompetitorName, c.MentionCount, c.MentionRate*100, rank)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.FailedPrompts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed prompts:")
		for _, f := range r.FailedPrompts {
			fmt.Fprintf(w, "  %s: %s\n", f.PromptID, f.Reason)
		}
	}
	return nil
}
