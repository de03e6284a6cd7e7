package workflow

import (
	"strings"

	"vid2deck/internal/dedup"
	"vid2deck/internal/slides"
)

const spansPerLine = 10

// formatSpans renders removed duplicate ranges as "anchor-last" pairs joined
// by " / ", spansPerLine to a line.
func formatSpans(spans []dedup.Span) []string {
	var lines []string
	for start := 0; start < len(spans); start += spansPerLine {
		end := min(start+spansPerLine, len(spans))
		parts := make([]string, 0, end-start)
		for _, span := range spans[start:end] {
			parts = append(parts, slides.FormatTimestamp(span.Anchor)+"-"+slides.FormatTimestamp(span.Last))
		}
		lines = append(lines, strings.Join(parts, " / "))
	}
	return lines
}
