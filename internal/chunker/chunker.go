// Package chunker splits markdown text into fixed-size, overlapping
// chunks with source offsets and section headings. It is pure and safe
// for concurrent use.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Chunk is one extracted segment of the source text.
type Chunk struct {
	// Content is the chunk text, a contiguous slice of the source.
	Content string

	// Index is the 0-based position in the chunk sequence.
	Index int

	// CharStart and CharEnd are byte offsets into the source text.
	CharStart int
	CharEnd   int

	// Heading is the nearest markdown heading at or before CharStart,
	// with the leading '#' markers stripped. Empty if none precedes.
	Heading string
}

// region marks a fenced code block by its byte offsets.
type region struct {
	start, end int
}

// heading marks a markdown heading line by its byte offset.
type heading struct {
	offset int
	text   string
}

// Split chunks text into segments of at most size characters, repeating
// overlap characters of trailing context at the start of the next chunk.
// Chunk boundaries never fall inside a fenced code block unless the
// block itself is longer than size. Empty or whitespace-only input
// yields no chunks.
func Split(text string, size, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}

	fences, headings := scanStructure(text)

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = adjustCut(end, start, fences)
			end = snapToRuneStart(text, end, start)
			if end <= start {
				// The budget is smaller than one rune; take it whole.
				_, n := utf8.DecodeRuneInString(text[start:])
				end = start + n
			}
		}

		chunks = append(chunks, Chunk{
			Content:   text[start:end],
			Index:     len(chunks),
			CharStart: start,
			CharEnd:   end,
			Heading:   precedingHeading(headings, start),
		})

		if end == len(text) {
			break
		}

		next := snapToRuneStart(text, end-overlap, start)
		if next <= start {
			next = end // overlap cannot make progress, drop it
		}
		start = next
	}

	return chunks
}

// snapToRuneStart moves a tentative cut point back to the nearest rune
// boundary, at most down to floor, so no chunk ever splits a multibyte
// character.
func snapToRuneStart(text string, cut, floor int) int {
	for cut > floor && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

// adjustCut moves a tentative cut point out of any fenced code block it
// falls inside. The cut moves back to the fence start when the fence
// begins after the chunk start; a fence longer than the chunk budget
// cannot be kept atomic and is split at the tentative point.
func adjustCut(cut, chunkStart int, fences []region) int {
	for _, f := range fences {
		if cut > f.start && cut < f.end {
			if f.start > chunkStart {
				return f.start
			}
			return cut
		}
	}
	return cut
}

// precedingHeading returns the text of the last heading at or before
// the given offset.
func precedingHeading(headings []heading, offset int) string {
	text := ""
	for _, h := range headings {
		if h.offset > offset {
			break
		}
		text = h.text
	}
	return text
}

// scanStructure walks the text line by line, collecting fenced code
// block regions and markdown heading offsets. Headings inside fences
// are ignored. An unclosed fence extends to the end of the text.
func scanStructure(text string) ([]region, []heading) {
	var fences []region
	var headings []heading

	inFence := false
	fenceStart := 0
	offset := 0

	for offset <= len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		var next int
		if lineEnd < 0 {
			line = text[offset:]
			next = len(text) + 1
		} else {
			line = text[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			if inFence {
				fences = append(fences, region{start: fenceStart, end: min(next, len(text))})
				inFence = false
			} else {
				inFence = true
				fenceStart = offset
			}
		case !inFence && strings.HasPrefix(trimmed, "#"):
			headings = append(headings, heading{
				offset: offset,
				text:   strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
			})
		}

		offset = next
	}

	if inFence {
		fences = append(fences, region{start: fenceStart, end: len(text)})
	}

	return fences, headings
}
