// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package analyzer // import "go.opentelemetry.io/request-profiler/analyzer"

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"go.opentelemetry.io/request-profiler/profile"
)

const (
	DefaultTrivialMilliseconds    = 2.0
	DefaultTrivialGapMilliseconds = 4.0
	DefaultDecimalPlaces          = 2

	// maxDecimalPlaces keeps Round away from float64 precision limits.
	maxDecimalPlaces = 9
	// visibleGapMilliseconds is the reason duration below which a gap is
	// not worth showing at all.
	visibleGapMilliseconds = 0.02
)

// Config controls the derived statistics computed by Analyze.
type Config struct {
	// TrivialMilliseconds is the self duration below which a step is trivial.
	TrivialMilliseconds float64 `yaml:"trivial_milliseconds"`
	// TrivialGapMilliseconds is the reason duration below which a gap is trivial.
	TrivialGapMilliseconds float64 `yaml:"trivial_gap_milliseconds"`
	// IgnoredDuplicateExecuteTypes lists call types and execute types that
	// are excluded from call counts and never serve as the first occurrence
	// of a duplicate.
	IgnoredDuplicateExecuteTypes []string `yaml:"ignored_duplicate_execute_types"`
	// DecimalPlaces is the rounding applied for display.
	DecimalPlaces int `yaml:"decimal_places"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		TrivialMilliseconds:    DefaultTrivialMilliseconds,
		TrivialGapMilliseconds: DefaultTrivialGapMilliseconds,
		DecimalPlaces:          DefaultDecimalPlaces,
	}
}

// Validate checks the configuration for values Analyze cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.TrivialMilliseconds < 0 || math.IsNaN(c.TrivialMilliseconds) {
		errs = append(errs, fmt.Errorf("invalid trivial threshold %v", c.TrivialMilliseconds))
	}
	if c.TrivialGapMilliseconds < 0 || math.IsNaN(c.TrivialGapMilliseconds) {
		errs = append(errs, fmt.Errorf("invalid trivial gap threshold %v",
			c.TrivialGapMilliseconds))
	}
	if c.DecimalPlaces < 0 || c.DecimalPlaces > maxDecimalPlaces {
		errs = append(errs, fmt.Errorf("decimal places must be within [0, %d], got %d",
			maxDecimalPlaces, c.DecimalPlaces))
	}
	if slices.Contains(c.IgnoredDuplicateExecuteTypes, "") {
		errs = append(errs, errors.New("empty ignored duplicate execute type"))
	}
	return errors.Join(errs...)
}

// Round rounds ms to the configured number of decimal places.
func (c Config) Round(ms float64) float64 {
	scale := math.Pow10(c.DecimalPlaces)
	return math.Round(ms*scale) / scale
}

func (c Config) ignored(callType string, ct *profile.CustomTiming) bool {
	return slices.Contains(c.IgnoredDuplicateExecuteTypes, callType) ||
		(ct.ExecuteType != "" && slices.Contains(c.IgnoredDuplicateExecuteTypes, ct.ExecuteType))
}
