package summarize

import (
	"strings"
	"unicode"
)

// TruncateAtWord cuts text to at most budget bytes without splitting a
// word. The cut happens at the last whitespace inside the budget; when a
// single word exceeds the whole budget the hard cut is unavoidable.
func TruncateAtWord(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}
	cut := text[:budget]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}

// parseKeyPoints turns the model's line-based output into a bounded list.
// It tolerates bullet markers and numbered prefixes, drops lines too short
// to be real points, and truncates (never pads) to max.
func parseKeyPoints(raw string, max int) []string {
	var points []string
	for _, line := range strings.Split(raw, "\n") {
		point := stripListMarker(strings.TrimSpace(line))
		if len(point) < minPointLength {
			continue
		}
		points = append(points, point)
		if len(points) == max {
			break
		}
	}
	return points
}

// stripListMarker removes a leading bullet (•, -, *) or numbered prefix
// like "3." or "3)".
func stripListMarker(line string) string {
	for _, marker := range []string{"•", "-", "*"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

// parseTags splits the model's output on commas and newlines, lowercases,
// strips surrounding punctuation, filters empty and overlong entries, and
// truncates to max.
func parseTags(raw string, max int) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.TrimSpace(f))
		tag = strings.TrimFunc(tag, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tag == "" || len(tag) > 40 {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == max {
			break
		}
	}
	return tags
}
