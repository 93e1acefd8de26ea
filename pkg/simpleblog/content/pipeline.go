// Package content is the pure, synchronous content pipeline: it sanitizes
// untrusted HTML and computes read time and excerpts from raw bytes. It
// performs no network or storage I/O, so it runs inline in the request path.
package content

import (
	"encoding/json"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// WordsPerMinute is the reading speed used by ReadTime.
const WordsPerMinute = 200

var (
	// sanitizePolicy keeps common user-generated formatting while dropping
	// script elements and inline event-handler attributes.
	sanitizePolicy = bluemonday.UGCPolicy()

	// textPolicy strips all markup, leaving plain text.
	textPolicy = bluemonday.StrictPolicy()
)

// Sanitize returns safe HTML with script elements and event-handler
// attributes removed. Sanitize is idempotent: Sanitize(Sanitize(x)) ==
// Sanitize(x).
func Sanitize(html string) string {
	return sanitizePolicy.Sanitize(html)
}

// PlainText strips all markup from html.
func PlainText(html string) string {
	return textPolicy.Sanitize(html)
}

// ReadTime estimates reading time in minutes as ceil(words / 200). Empty
// text reads in zero minutes.
func ReadTime(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// Excerpt truncates text to at most maxLen characters of plain text, with a
// trailing ellipsis when truncated.
func Excerpt(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	// Avoid cutting mid-word when a space is available.
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// ParseTags parses a JSON array string into an insertion-ordered,
// de-duplicated tag list. Malformed input yields the empty list.
func ParseTags(raw string) []string {
	tags := []string{}
	if strings.TrimSpace(raw) == "" {
		return tags
	}

	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return tags
	}

	seen := make(map[string]struct{}, len(parsed))
	for _, tag := range parsed {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
