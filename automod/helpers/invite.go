package helpers

import (
	"regexp"
	"strings"
)

var inviteRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:discord(?:app)?\.com/invite|discord\.(?:gg|io|me|li))/([a-z0-9-]{2,32})`)

// Returns the invite codes linked in the text, in order of appearance. Duplicates are kept, since each occurrence counts.
func ExtractInviteCodes(raw string) []string {
	var out []string
	for _, m := range inviteRegex.FindAllStringSubmatch(raw, -1) {
		out = append(out, m[1])
	}
	return out
}

// Accepts either a bare invite code or a full invite link.
func NormalizeInviteCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if codes := ExtractInviteCodes(raw); len(codes) > 0 {
		return codes[0]
	}
	return raw
}
