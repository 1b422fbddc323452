package helpers

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

var customEmojiRegex = regexp.MustCompile(`<a?:\w{2,32}:\d{5,25}>`)

// Whether the rune can start an emoji grapheme cluster.
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	}
	switch r {
	case 0x00A9, 0x00AE, 0x203C, 0x2049, 0x2122, 0x2139, 0x3030, 0x303D, 0x3297, 0x3299:
		return true
	}
	return false
}

// keycap sequences, eg "1️⃣"
func isKeycap(runes []rune) bool {
	if len(runes) < 2 {
		return false
	}
	first := runes[0]
	if !(first >= '0' && first <= '9') && first != '#' && first != '*' {
		return false
	}
	return runes[len(runes)-1] == 0x20E3
}

// Counts emoji in the text, treating custom platform emoji (<:name:id>) as one each. ok is false if anything other than emoji and whitespace is present.
func CountEmoji(s string) (count int, ok bool) {
	count = len(customEmojiRegex.FindAllString(s, -1))
	rest := customEmojiRegex.ReplaceAllString(s, " ")

	gr := uniseg.NewGraphemes(rest)
	for gr.Next() {
		runes := gr.Runes()
		if len(runes) == 0 {
			continue
		}
		if strings.TrimFunc(gr.Str(), unicode.IsSpace) == "" {
			continue
		}
		if isEmojiRune(runes[0]) || isKeycap(runes) {
			count++
			continue
		}
		return count, false
	}
	return count, true
}

// Whether the text (after trimming whitespace) is non-empty and consists only of emoji.
func IsEmojiOnly(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	n, ok := CountEmoji(s)
	return ok && n > 0
}
