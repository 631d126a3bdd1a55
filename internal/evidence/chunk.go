package evidence

import "strings"

// Chunk is one window of document text submitted to the oracle. Index
// preserves document order so merged results stay deterministic.
type Chunk struct {
	Index int
	Text  string
}

// sentence boundaries considered safe places to cut a chunk.
var boundaries = []string{". ", ".\n", "! ", "? ", "\n\n"}

// Split divides text into overlapping chunks of at most size runes,
// preferring to end each chunk at a sentence boundary in the back half of
// its window. Successive chunks overlap so evidence spanning a cut point
// appears whole in at least one chunk.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		return []Chunk{{Index: 0, Text: text}}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		if len(runes) == 0 {
			return nil
		}
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: string(runes[start:])})
			break
		}

		window := string(runes[start:end])
		if cut := lastBoundary(window); cut > size/2 {
			end = start + cut
		}

		chunks = append(chunks, Chunk{Index: len(chunks), Text: string(runes[start:end])})

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the rune offset just past the last sentence
// boundary in s, or -1 when none exists.
func lastBoundary(s string) int {
	best := -1
	for _, b := range boundaries {
		if i := strings.LastIndex(s, b); i >= 0 {
			end := i + len(b)
			if end > best {
				best = end
			}
		}
	}
	if best < 0 {
		return -1
	}
	return len([]rune(s[:best]))
}
