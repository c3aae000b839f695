// Package quality provides pure, side-effect-free validation of extracted
// text and quality scoring of individual chunks. It has no dependencies
// beyond the standard library and is safe for concurrent use.
package quality

import "unicode"

// FailReason identifies why extracted text was rejected.
type FailReason string

// Gate failure reasons.
const (
	ReasonTextTooShort   FailReason = "TEXT_TOO_SHORT"
	ReasonExcessiveNoise FailReason = "EXCESSIVE_NOISE"
)

// Warning identifies a non-fatal quality concern.
type Warning string

// WarningHighNoiseRatio flags text that passed but carries a noise ratio
// above the configured warning threshold.
const WarningHighNoiseRatio Warning = "HIGH_NOISE_RATIO"

// GateConfig holds the validation thresholds.
type GateConfig struct {
	// MinLength is the minimum effective length: the count of
	// non-whitespace characters, so padding with spaces cannot game it.
	MinLength int

	// MaxNoiseRatio is the warning threshold. Text at or above it passes
	// with a HIGH_NOISE_RATIO warning.
	MaxNoiseRatio float64

	// RejectNoiseRatio is the rejection threshold. Text at or above it
	// fails with EXCESSIVE_NOISE.
	RejectNoiseRatio float64
}

// DefaultGateConfig returns the standard gate thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinLength:        100,
		MaxNoiseRatio:    0.3,
		RejectNoiseRatio: 0.5,
	}
}

// GateResult is the outcome of validating extracted text.
type GateResult struct {
	Passed     bool
	Reason     FailReason
	Warnings   []Warning
	NoiseRatio float64
}

// NoiseRatio returns the fraction of characters that are neither
// alphanumeric nor whitespace. The denominator is the total character
// count including whitespace; empty text has ratio 0.
func NoiseRatio(text string) float64 {
	total := 0
	noise := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		noise++
	}
	if total == 0 {
		return 0
	}
	return float64(noise) / float64(total)
}

// effectiveLength counts non-whitespace characters.
func effectiveLength(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Validate checks whether extracted text is usable. It is deterministic
// given the same inputs.
func Validate(text string, cfg GateConfig) GateResult {
	result := GateResult{NoiseRatio: NoiseRatio(text)}

	if effectiveLength(text) < cfg.MinLength {
		result.Reason = ReasonTextTooShort
		return result
	}

	if result.NoiseRatio >= cfg.RejectNoiseRatio {
		result.Reason = ReasonExcessiveNoise
		return result
	}

	result.Passed = true
	if result.NoiseRatio >= cfg.MaxNoiseRatio {
		result.Warnings = append(result.Warnings, WarningHighNoiseRatio)
	}
	return result
}
