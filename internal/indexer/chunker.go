// ABOUTME: Splits the long-lived memory document into bounded text chunks
// ABOUTME: Section-first on ## headings, sliding window with overlap for long sections
package indexer

import "strings"

// Tokens are approximated at 4 characters each; exact counts do not matter
// for retrieval, only that chunks stay under the embedding input limit.
const charsPerToken = 4

// ChunkMarkdown splits markdown into retrieval-sized pieces. Text is divided
// on second-level headings first; any section still longer than the budget is
// cut by a sliding character window with the given token overlap.
func ChunkMarkdown(text string, maxTokens, overlapTokens int) []string {
	maxChars := maxTokens * charsPerToken
	overlapChars := overlapTokens * charsPerToken

	sections := strings.Split(text, "\n## ")
	if len(sections) <= 1 && len(text) <= maxChars {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	for i, sec := range sections {
		sec = strings.TrimSpace(sec)
		if sec == "" {
			continue
		}
		if i > 0 {
			sec = "## " + sec
		}
		if len(sec) <= maxChars {
			chunks = append(chunks, sec)
			continue
		}
		step := maxChars - overlapChars
		if step < 1 {
			step = maxChars
		}
		for start := 0; start < len(sec); start += step {
			end := start + maxChars
			if end > len(sec) {
				end = len(sec)
			}
			chunk := strings.TrimSpace(sec[start:end])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}
