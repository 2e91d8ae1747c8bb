package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the largest request the speech backend accepts.
const DefaultMaxChunkChars = 7500

const ellipsis = '…'

// Chunk is one bounded piece of narration text, submitted to the speech backend
// on its own. Index counts from one and Total is the size of the whole sequence.
type Chunk struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text"`
}

// ChunkText splits normalized text into chunks of at most maxChars runes.
//
// Every paragraph that fits the limit becomes a chunk of its own. A longer
// paragraph is split at sentence ends, and a sentence that still exceeds the
// limit is sliced by length. The result depends only on the input, so a rerun
// yields the same chunk indices. Empty input yields no chunks, and a
// non-positive maxChars falls back to DefaultMaxChunkChars.
func ChunkText(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var pieces []string

	for _, paragraph := range splitParagraphs(text) {
		if runeLen(paragraph) <= maxChars {
			pieces = append(pieces, paragraph)

			continue
		}

		pieces = append(pieces, splitParagraph(paragraph, maxChars)...)
	}

	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(pieces))
	for index, piece := range pieces {
		chunks[index] = Chunk{Index: index + 1, Total: len(pieces), Text: piece}
	}

	return chunks
}

// splitParagraph packs sentences into pieces joined by a single space.
func splitParagraph(paragraph string, maxChars int) []string {
	var pieces []string

	current := ""

	for _, sentence := range splitSentences(paragraph) {
		candidate := sentence
		if current != "" {
			candidate = current + singleSpace + sentence
		}

		if runeLen(candidate) <= maxChars {
			current = candidate

			continue
		}

		if current != "" {
			pieces = append(pieces, current)
		}

		current = ""

		if runeLen(sentence) > maxChars {
			pieces = append(pieces, hardSlice(sentence, maxChars)...)

			continue
		}

		current = sentence
	}

	if current != "" {
		pieces = append(pieces, current)
	}

	return pieces
}

// splitSentences breaks after a run of terminal marks that is followed by
// whitespace. The whitespace itself is dropped.
func splitSentences(paragraph string) []string {
	var sentences []string

	runes := []rune(paragraph)
	start := 0

	for index := 0; index < len(runes); index++ {
		if !isSentenceMark(runes[index]) {
			continue
		}

		end := index + 1
		for end < len(runes) && isSentenceMark(runes[end]) {
			end++
		}

		index = end - 1

		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}

		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = end
	}

	if sentence := strings.TrimSpace(string(runes[start:])); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

func isSentenceMark(r rune) bool {
	return strings.ContainsRune(terminalMarks, r) || r == ellipsis
}

// hardSlice cuts text into consecutive pieces of at most maxChars runes.
func hardSlice(text string, maxChars int) []string {
	runes := []rune(text)
	pieces := make([]string, 0, len(runes)/maxChars+1)

	for start := 0; start < len(runes); start += maxChars {
		end := min(start+maxChars, len(runes))

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
	}

	return pieces
}

func runeLen(text string) int {
	return utf8.RuneCountInString(text)
}
