package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-geoscore/infrastructure/source"
	"github.com/ahrav/go-geoscore/internal/application"
)

const scanYAML = `scan_id: scan-42
brand: Acme
competitors: [Foo, Bar]
prompts:
  - id: p1
    runs:
      - {answer: "1. Acme\n2. Foo", evaluation: {is_mentioned: true, mention_type: direct, rank_position: 1}}
      - {answer: "1. Acme\n2. Foo", evaluation: {is_mentioned: true, mention_type: direct, rank_position: 1}}
  - id: p2
    runs:
      - {answer: "1. Foo\n2. Acme", evaluation: {is_mentioned: true, mention_type: direct, rank_position: 2}}
      - {answer: "1. Foo\n2. Acme", evaluation: {is_mentioned: true, mention_type: direct, rank_position: 2}}
  - id: p3
    runs:
      - {answer: "Acme is a solid choice.", evaluation: {is_mentioned: true, mention_type: direct}}
      - {answer: "Acme is a solid choice.", evaluation: {is_mentioned: true, mention_type: direct}}
  - id: p4
    runs:
      - {answer: "There is no clear leader.", evaluation: {mention_type: none}}
      - {answer: "There is no clear leader.", evaluation: {mention_type: none}}
  - id: p5
    runs:
      - {answer: "It depends on your budget.", evaluation: {mention_type: none}}
  - id: p6
    runs: []
`

// execute runs the root command with args after resetting every flag to
// its default, since commands and their flags are package globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	reset := func(c *cobra.Command) {
		visit := func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
				if f.DefValue != "[]" {
					_ = sv.Replace(strings.Split(strings.Trim(f.DefValue, "[]"), ","))
				}
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
		c.PersistentFlags().VisitAll(visit)
		c.Flags().VisitAll(visit)
	}
	reset(rootCmd)
	for _, c := range rootCmd.Commands() {
		reset(c)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeScan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scanYAML), 0o600))
	return path
}

func TestScoreCmd_Text(t *testing.T) {
	out, err := execute(t, "score", "-f", writeScan(t), "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Scan:      scan-42")
	assert.Contains(t, out, "Prompts:   5 scored, 1 failed")
	assert.Contains(t, out, "Mentioned: 3/5 (60.0%")
	assert.Contains(t, out, "Share:     60.0% of 5 mentions")
	assert.Regexp(t, `Foo\s+2\s+40\.0%\s+1\.50`, out)
	assert.Regexp(t, `Bar\s+0\s+0\.0%\s+-`, out)
	assert.Contains(t, out, "p6: ")
}

func TestScoreCmd_JSON(t *testing.T) {
	out, err := execute(t, "score", "-f", writeScan(t), "-o", "json", "--top", "1", "--parallel", "1")
	require.NoError(t, err)

	var report application.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.InDelta(t, 60.0, report.ShareOfVoice.BrandShare, 1e-9)
	require.Len(t, report.ShareOfVoice.TopCompetitors, 1)
	assert.Equal(t, "Foo", report.ShareOfVoice.TopCompetitors[0].CompetitorName)
	assert.Len(t, report.ShareOfVoice.CompetitorMentions, 2)
}

func TestScoreCmd_MetricsFile(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "geoscore.prom")

	_, err := execute(t, "score", "-f", writeScan(t), "--metrics-file", metricsPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `geoscore_prompts_total{status="scored",unit="scan_scorer"} 5`)
	assert.Contains(t, string(raw), "geoscore_unit_executions_total")
}

func TestScoreCmd_Config(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("aggregation:\n  min_runs: 1\n"), 0o600))

	out, err := execute(t, "score", "-f", writeScan(t), "-c", cfgPath, "-o", "json")
	require.NoError(t, err)

	var report application.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotEmpty(t, report.Prompts)
	for _, p := range report.Prompts {
		assert.Equal(t, "aggregated", string(p.Evidence), p.PromptID)
	}
}

func TestScoreCmd_Errors(t *testing.T) {
	scan := writeScan(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing file flag", args: []string{"score"}, wantErr: `required flag(s) "file" not set`},
		{name: "file not found", args: []string{"score", "-f", filepath.Join(t.TempDir(), "none.yaml")}, wantErr: "read scan input"},
		{name: "bad output", args: []string{"score", "-f", scan, "-o", "xml"}, wantErr: "invalid output format"},
		{name: "bad log level", args: []string{"score", "-f", scan, "--log-level", "loud"}, wantErr: "invalid log level"},
		{name: "bad log format", args: []string{"score", "-f", scan, "--log-format", "xml"}, wantErr: "invalid log format"},
		{name: "missing config", args: []string{"score", "-f", scan, "-c", filepath.Join(t.TempDir(), "none.yaml")}, wantErr: "load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSampleCmd(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		out, err := execute(t, "sample", "--prompts", "4", "--runs", "2", "--seed", "9")
		require.NoError(t, err)

		in, err := source.DecodeScanInput(strings.NewReader(out), source.FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, "Acme", in.Brand)
		assert.Equal(t, []string{"Foo", "Bar", "Baz"}, in.Competitors)
		assert.Len(t, in.Prompts, 4)
	})

	t.Run("file then score", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sample.yaml")
		_, err := execute(t, "sample", "-o", path, "--brand", "Zeta", "--competitors", "One,Two", "--log-level", "error")
		require.NoError(t, err)

		out, err := execute(t, "score", "-f", path, "-o", "json")
		require.NoError(t, err)

		var report application.ScanReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, "Zeta", report.BrandName)
		assert.Equal(t, 10, report.ShareOfVoice.TotalPromptsTested)
		assert.Len(t, report.ShareOfVoice.CompetitorMentions, 2)
	})

	t.Run("negative prompts", func(t *testing.T) {
		_, err := execute(t, "sample", "--prompts", "-1")
		assert.ErrorContains(t, err, "must not be negative")
	})
}
