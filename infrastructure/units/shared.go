// Package units provides the visibility scoring units that implement the
// ports.Unit interface: judge aggregation, competitor detection and the
// share-of-voice rollup. Each unit wraps a pure function that can also be
// called directly.
package units

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
var ErrEmptyUnitName = errors.New("unit name cannot be empty")

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// decodeConfig overlays a loosely typed configuration map onto out, which
// should already hold defaults. Unknown keys are rejected so that typos in
// YAML configuration do not pass silently.
func decodeConfig(config map[string]any, out any) error {
	if len(config) == 0 {
		return nil
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parse config (check for typos): %w", err)
	}
	return nil
}
