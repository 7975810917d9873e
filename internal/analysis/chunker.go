package analysis

// paragraphBreakMinFraction is how far into a window a "\n\n" must sit before
// the window end is pulled back to it.
const paragraphBreakMinFraction = 0.6

// Chunk splits text into overlapping segments of at most targetLen runes,
// preferring to end a segment at a paragraph break. Consecutive segments share
// at most overlap runes, and every step advances by at least one rune.
func Chunk(text string, targetLen, overlap int) []string {
	if targetLen <= 0 {
		targetLen = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	r := []rune(text)
	if len(r) <= targetLen {
		return []string{text}
	}

	minBreak := int(float64(targetLen) * paragraphBreakMinFraction)
	var chunks []string
	start := 0
	for start < len(r) {
		end := min(start+targetLen, len(r))
		if end < len(r) {
			if brk := lastParagraphBreak(r[start:end]); brk > minBreak {
				end = start + brk
			}
		}
		chunks = append(chunks, string(r[start:end]))
		if end >= len(r) {
			break
		}
		n := end - start
		start += max(1, n-min(overlap, n))
	}
	return chunks
}

func lastParagraphBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i
		}
	}
	return -1
}
