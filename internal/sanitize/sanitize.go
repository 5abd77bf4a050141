// Package sanitize cleans free-text user queries before they reach the
// resolver, the metadata API, or a Telegram message.
package sanitize

import (
	"net/url"
	"strings"
)

// MaxQueryLength is the maximum accepted query length in runes.
// Longer input is truncated, not rejected.
const MaxQueryLength = 100

// markupChars are the characters Telegram Markdown would misinterpret
// when a query is echoed back in a message.
const markupChars = "*_~`>|"

// Query trims, length-caps, and markup-escapes a raw user query.
// The result is safe to echo in a message and stable for scoring;
// percent-encode it with QueryParam before use in a URL.
func Query(raw string) string {
	q := strings.TrimSpace(raw)

	runes := []rune(q)
	if len(runes) > MaxQueryLength {
		q = string(runes[:MaxQueryLength])
	}

	return escapeMarkup(q)
}

// QueryParam percent-encodes a query for use as a URL query parameter.
func QueryParam(q string) string {
	return url.QueryEscape(q)
}

// escapeMarkup backslash-escapes Telegram markup characters.
func escapeMarkup(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markupChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
