package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseRatio(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"alphanumeric only", "HelloWorld123", 0},
		{"mixed noise", "a!b@c", 0.4},
		{"empty", "", 0},
		{"whitespace counts toward denominator only", "a b!", 0.25},
		{"all noise", "!!!", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NoiseRatio(tt.text), 1e-9)
		})
	}
}

func TestValidate_MinLengthBoundary(t *testing.T) {
	cfg := GateConfig{MinLength: 10, MaxNoiseRatio: 0.3, RejectNoiseRatio: 0.5}

	t.Run("exactly at minimum passes", func(t *testing.T) {
		result := Validate(strings.Repeat("a", 10), cfg)
		assert.True(t, result.Passed)
		assert.Empty(t, result.Warnings)
	})

	t.Run("one fewer fails", func(t *testing.T) {
		result := Validate(strings.Repeat("a", 9), cfg)
		assert.False(t, result.Passed)
		assert.Equal(t, ReasonTextTooShort, result.Reason)
	})

	t.Run("whitespace padding does not count", func(t *testing.T) {
		// 9 letters padded with spaces still fails.
		result := Validate(strings.Repeat("a ", 9), cfg)
		assert.False(t, result.Passed)
		assert.Equal(t, ReasonTextTooShort, result.Reason)
	})
}

func TestValidate_NoiseBoundaries(t *testing.T) {
	cfg := GateConfig{MinLength: 1, MaxNoiseRatio: 0.2, RejectNoiseRatio: 0.5}

	t.Run("exactly at reject threshold fails", func(t *testing.T) {
		// 2 noise chars out of 4 total = 0.5
		result := Validate("ab!@", cfg)
		assert.False(t, result.Passed)
		assert.Equal(t, ReasonExcessiveNoise, result.Reason)
		assert.InDelta(t, 0.5, result.NoiseRatio, 1e-9)
	})

	t.Run("between warn and reject passes with warning", func(t *testing.T) {
		// 1 noise char out of 4 total = 0.25
		result := Validate("abc!", cfg)
		assert.True(t, result.Passed)
		assert.Contains(t, result.Warnings, WarningHighNoiseRatio)
	})

	t.Run("below warn threshold passes clean", func(t *testing.T) {
		result := Validate("abcdefghi!", cfg) // 0.1
		assert.True(t, result.Passed)
		assert.Empty(t, result.Warnings)
	})
}

func TestValidate_Deterministic(t *testing.T) {
	cfg := DefaultGateConfig()
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	first := Validate(text, cfg)
	second := Validate(text, cfg)
	assert.Equal(t, first, second)
	assert.True(t, first.Passed)
}
