package quality

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ChunkFlag identifies a per-chunk quality issue.
type ChunkFlag string

// Chunk quality flags.
const (
	FlagTooShort  ChunkFlag = "TOO_SHORT"
	FlagTooLong   ChunkFlag = "TOO_LONG"
	FlagNoContext ChunkFlag = "NO_CONTEXT"
	FlagFragment  ChunkFlag = "FRAGMENT"
	FlagEmpty     ChunkFlag = "EMPTY"
)

// AnalyzerConfig holds chunk scoring thresholds.
type AnalyzerConfig struct {
	// MinChars is the minimum length for a chunk to count as complete.
	MinChars int

	// MaxChars is the length above which a chunk is flagged TOO_LONG.
	MaxChars int

	// IdealLength is the target chunk size for the length score.
	IdealLength int

	// PenaltyPerFlag is the base-score reduction per detected flag.
	PenaltyPerFlag float64
}

// DefaultAnalyzerConfig returns the standard analyzer thresholds.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinChars:       50,
		MaxChars:       2000,
		IdealLength:    1000,
		PenaltyPerFlag: 0.15,
	}
}

// ChunkReport is the outcome of analyzing one chunk.
type ChunkReport struct {
	Flags     []ChunkFlag
	Score     float64
	CharCount int
	HasTitle  bool

	// Completeness is "complete", "partial" or "empty".
	Completeness string
}

// sentence terminators considered a proper chunk ending, including the
// CJK full-width forms.
const sentenceEnders = ".!?:>。！？"

// AnalyzeChunk scores a chunk's content using multi-factor scoring:
// base quality 40% (flag penalties), length 30% (proportional to the
// ideal size), context 20% (structural markers present) and
// completeness 10% (ends on a sentence boundary).
//
// hasContext reports whether the chunk carries external context such as
// a section heading; it substitutes for breadcrumb metadata.
func AnalyzeChunk(content string, hasContext bool, cfg AnalyzerConfig) ChunkReport {
	stripped := strings.TrimSpace(content)
	if stripped == "" {
		return ChunkReport{
			Flags:        []ChunkFlag{FlagEmpty},
			Completeness: "empty",
		}
	}

	var flags []ChunkFlag
	charCount := len([]rune(stripped))

	if charCount < cfg.MinChars {
		flags = append(flags, FlagTooShort)
	}
	if charCount > cfg.MaxChars {
		flags = append(flags, FlagTooLong)
	}

	hasTitle := strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, ">")
	if !hasTitle && !hasContext {
		flags = append(flags, FlagNoContext)
	}

	lastRune, _ := utf8.DecodeLastRuneInString(stripped)
	endsProperly := strings.ContainsRune(sentenceEnders, lastRune) ||
		strings.HasSuffix(stripped, "```")
	if !endsProperly {
		flags = append(flags, FlagFragment)
	}

	baseQuality := math.Max(0, 1.0-cfg.PenaltyPerFlag*float64(len(flags)))
	lengthScore := math.Min(1.0, float64(charCount)/float64(cfg.IdealLength))
	contextScore := 0.5
	if hasTitle || hasContext {
		contextScore = 1.0
	}
	completenessScore := 0.7
	if endsProperly {
		completenessScore = 1.0
	}

	score := baseQuality*0.40 + lengthScore*0.30 + contextScore*0.20 + completenessScore*0.10

	completeness := "complete"
	if !endsProperly {
		completeness = "partial"
	}

	return ChunkReport{
		Flags:        flags,
		Score:        math.Round(score*100) / 100,
		CharCount:    charCount,
		HasTitle:     hasTitle,
		Completeness: completeness,
	}
}
