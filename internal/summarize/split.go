package summarize

import (
	"strings"

	"github.com/szaher/miniagi/internal/tokens"
)

// Split breaks text into chunks whose estimate is at most maxTokens.
// Chunks end on line boundaries; a single line larger than the limit is
// cut on rune boundaries.
func Split(text string, est tokens.Estimator, maxTokens int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxTokens <= 0 || est.Estimate(text) <= maxTokens {
		return []string{text}
	}

	var chunks []string
	var current []string
	curTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		if t := strings.TrimSpace(strings.Join(current, "\n")); t != "" {
			chunks = append(chunks, t)
		}
		current = nil
		curTokens = 0
	}

	for _, line := range strings.Split(text, "\n") {
		n := est.Estimate(line) + 1 // newline
		if n > maxTokens {
			flush()
			chunks = append(chunks, splitLine(line, est, maxTokens)...)
			continue
		}
		if curTokens+n > maxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		curTokens += n
	}
	flush()

	return chunks
}

// splitLine cuts an over-long line into pieces that fit maxTokens.
func splitLine(line string, est tokens.Estimator, maxTokens int) []string {
	runes := []rune(line)
	var pieces []string
	for len(runes) > 0 {
		n := len(runes)
		for n > 1 && est.Estimate(string(runes[:n])) > maxTokens {
			n /= 2
		}
		if piece := strings.TrimSpace(string(runes[:n])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = runes[n:]
	}
	return pieces
}
