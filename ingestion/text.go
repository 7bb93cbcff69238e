// Package ingestion loads the catalogued PDFs, splits them into page-scoped
// chunks and persists them to the vector and graph stores.
package ingestion

import (
	"strings"
	"unicode/utf8"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// CleanText collapses every whitespace run to a single space and trims the
// result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitText cuts text into chunks of at most size runes, trying paragraph,
// line and word boundaries before falling back to single runes. Adjacent
// chunks share up to overlap runes.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return splitRecursive(text, defaultSeparators, size, overlap)
}

func splitRecursive(text string, separators []string, size, overlap int) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" {
			separator = ""
			break
		}
		if strings.Contains(text, candidate) {
			separator = candidate
			remaining = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, separator)
	}

	chunks := make([]string, 0)
	pending := make([]string, 0)
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, mergePieces(pending, separator, size, overlap)...)
			pending = pending[:0]
		}
		if len(remaining) == 0 {
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, splitRecursive(piece, remaining, size, overlap)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, mergePieces(pending, separator, size, overlap)...)
	}
	return chunks
}

// mergePieces packs pieces into windows no longer than size, carrying a tail
// of at most overlap runes into the next window.
func mergePieces(pieces []string, separator string, size, overlap int) []string {
	sepLen := runeLen(separator)
	chunks := make([]string, 0)
	window := make([]string, 0)
	total := 0

	joinedLen := func(next int) int {
		if len(window) == 0 {
			return next
		}
		return total + sepLen + next
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if joinedLen(n) > size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > overlap || (joinedLen(n) > size && total > 0) {
				dropped := runeLen(window[0])
				if len(window) > 1 {
					dropped += sepLen
				}
				total -= dropped
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
