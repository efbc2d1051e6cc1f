package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-geoscore/infrastructure/source"
	"github.com/ahrav/go-geoscore/internal/logging"
)

var sampleFlags struct {
	brand       string
	competitors []string
	prompts     int
	runs        int
	seed        int64
	output      string
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic scan input",
	Long: `Writes a synthetic scan input in YAML whose judge evaluations agree with
the generated answers. Useful for trying out score and serve.`,
	RunE: runSample,
}

func init() {
	def := source.DefaultSampleOptions()

	f := sampleCmd.Flags()
	f.StringVar(&sampleFlags.brand, "brand", def.Brand, "Brand name")
	f.StringSliceVar(&sampleFlags.competitors, "competitors", def.Competitors, "Competitor names")
	f.IntVar(&sampleFlags.prompts, "prompts", def.Prompts, "Number of prompts")
	f.IntVar(&sampleFlags.runs, "runs", def.RunsPerPrompt, "Judge runs per prompt")
	f.Int64Var(&sampleFlags.seed, "seed", 1, "Random seed")
	f.StringVarP(&sampleFlags.output, "output", "o", "", "Output path (default stdout)")
}

func runSample(cmd *cobra.Command, _ []string) error {
	if sampleFlags.prompts < 0 || sampleFlags.runs < 0 {
		return fmt.Errorf("prompts and runs must not be negative")
	}

	in := source.GenerateSampleScan(source.SampleOptions{
		Brand:         sampleFlags.brand,
		Competitors:   sampleFlags.competitors,
		Prompts:       sampleFlags.prompts,
		RunsPerPrompt: sampleFlags.runs,
	}, sampleFlags.seed)
	if err := in.Validate(); err != nil {
		return fmt.Errorf("invalid sample: %w", err)
	}

	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	if sampleFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(sampleFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	logging.New("sample").Info("sample written", "path", sampleFlags.output, "prompts", len(in.Prompts))
	return nil
}
