package utils

import (
	"regexp"
	"strings"
)

var (
	channelNameInvalid = regexp.MustCompile(`[^\pN\p{So}A-Za-z0-9\-]`)
	channelNameDashes  = regexp.MustCompile(`-{2,}`)
)

// SanitizeChannelName turns s into a name the platform accepts for text
// channels: letters, digits, symbols such as emoji and single dashes, lowercased.
func SanitizeChannelName(s string) string {
	s = channelNameInvalid.ReplaceAllString(s, "-")
	s = channelNameDashes.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}
