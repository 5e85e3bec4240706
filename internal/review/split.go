package review

import "unicode/utf8"

// MaxMessageLen is the chat transport's hard per-message limit, in characters.
const MaxMessageLen = 4096

// SplitMessage cuts s into consecutive chunks of at most limit characters.
// Cuts fall on rune boundaries with no regard for words, so joining the
// chunks yields s exactly. An empty s yields no chunks. A non-positive
// limit returns s as a single chunk.
func SplitMessage(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(s)/limit+1)
	start, count := 0, 0
	for i := range s {
		if count == limit {
			chunks = append(chunks, s[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, s[start:])
}
