// Package source provides EvaluationSource implementations and the
// middleware that wraps them.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/domain"
)

// Format names a ScanInput encoding.
type Format string

// Supported ScanInput encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ScanInput is a complete scan recorded ahead of time: the brand, its
// competitors and every judge run for every prompt.
type ScanInput struct {
	ScanID      string        `yaml:"scan_id,omitempty" json:"scan_id,omitempty"`
	Brand       string        `yaml:"brand" json:"brand" validate:"required"`
	Competitors []string      `yaml:"competitors,omitempty" json:"competitors,omitempty" validate:"dive,required"`
	Prompts     []PromptInput `yaml:"prompts" json:"prompts" validate:"unique=ID,dive"`
}

// PromptInput is one prompt of a ScanInput.
type PromptInput struct {
	ID string `yaml:"id" json:"id" validate:"required"`
	// Text is the prompt as sent to the assistant. Informational.
	Text string     `yaml:"text,omitempty" json:"text,omitempty"`
	Runs []RunInput `yaml:"runs" json:"runs" validate:"dive"`
}

// RunInput is one judge pass over one answer.
type RunInput struct {
	Answer     string                 `yaml:"answer" json:"answer"`
	Evaluation domain.JudgeEvaluation `yaml:"evaluation" json:"evaluation"`
}

// inputValidator checks struct tags and judge evaluation enums.
var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateEvaluation, domain.JudgeEvaluation{})
	return v
}

func validateEvaluation(sl validator.StructLevel) {
	eval, ok := sl.Current().Interface().(domain.JudgeEvaluation)
	if !ok {
		return
	}
	if err := eval.Validate(); err != nil {
		sl.ReportError(eval, "Evaluation", "Evaluation", "judgeevaluation", err.Error())
	}
}

// Validate checks required fields, unique prompt IDs and evaluation enums.
func (in *ScanInput) Validate() error {
	return inputValidator.Struct(in)
}

// Request returns the ScanRequest that scores every prompt of the input in
// document order.
func (in *ScanInput) Request() application.ScanRequest {
	ids := make([]string, len(in.Prompts))
	for i, p := range in.Prompts {
		ids[i] = p.ID
	}
	return application.ScanRequest{
		ScanID:      in.ScanID,
		BrandName:   in.Brand,
		Competitors: append([]string(nil), in.Competitors...),
		PromptIDs:   ids,
	}
}

// DecodeScanInput parses and validates a ScanInput. Unknown fields are
// rejected in both formats.
func DecodeScanInput(r io.Reader, format Format) (*ScanInput, error) {
	var in ScanInput

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return nil, fmt.Errorf("decode scan input: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&in); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode scan input: empty document")
			}
			return nil, fmt.Errorf("decode scan input: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scan input format %q", format)
	}

	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan input: %w", err)
	}
	return &in, nil
}

// FormatForPath picks the format from a file extension. Anything other than
// .json is read as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadScanInput reads and validates the scan input file at path.
func LoadScanInput(path string) (*ScanInput, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read scan input %s: %w", cleanPath, err)
	}
	return DecodeScanInput(bytes.NewReader(data), FormatForPath(cleanPath))
}
