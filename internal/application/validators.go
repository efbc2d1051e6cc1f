package application

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-geoscore/infrastructure/units"
)

// configValidator validates ScoringConfig values. It carries the custom
// tags registered by registerCustomValidators.
var configValidator = mustNewValidator()

func mustNewValidator() *validator.Validate {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		panic(err)
	}
	return v
}

// registerCustomValidators registers the semver and matchstrategy tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := v.RegisterValidation("matchstrategy", validateMatchStrategy); err != nil {
		return fmt.Errorf("failed to register matchstrategy validator: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// supportedStrategies lists the match strategy names accepted in
// configuration.
var supportedStrategies = []units.MatchStrategy{
	units.StrategyExact,
	units.StrategyNormalized,
	units.StrategyWordBoundary,
	units.StrategyFuzzy,
}

// validateMatchStrategy reports whether the field names a supported
// competitor match strategy.
func validateMatchStrategy(fl validator.FieldLevel) bool {
	return slices.Contains(supportedStrategies, units.MatchStrategy(fl.Field().String()))
}
