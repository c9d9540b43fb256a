package utils

import "unicode/utf8"

// MaxErrorDetail caps the error text persisted on a failed print job.
const MaxErrorDetail = 4000

// TruncateErrorDetail shortens s to at most max bytes without splitting a
// UTF-8 sequence, appending an ellipsis marker when truncation happened.
func TruncateErrorDetail(s string, max int) string {
	if max <= 0 {
		max = MaxErrorDetail
	}
	if len(s) <= max {
		return s
	}
	const marker = "…"
	cut := max - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
