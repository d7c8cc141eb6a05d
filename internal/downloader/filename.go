package downloader

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const maxTitleLength = 80

// UniqueFileName derives a storage filename from a video title, a timestamp,
// and the target extension. The nanosecond timestamp keeps two downloads of
// the same title distinct even within the same second.
func UniqueFileName(title, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%d.%s", SanitizeTitle(title), now.UnixNano(), ext)
}

// SanitizeTitle reduces a video title to a safe filename stem: letters,
// digits, dashes, and underscores only. An empty result falls back to "video".
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	s := strings.Trim(b.String(), "_-")
	if runes := []rune(s); len(runes) > maxTitleLength {
		s = string(runes[:maxTitleLength])
	}
	if s == "" {
		return "video"
	}
	return s
}
