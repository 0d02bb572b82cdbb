package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var hashtagInvalid = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizeHashtag turns "farm life", "#FarmLife" or "FarmLife" into "#FarmLife".
// It returns "" when nothing usable is left.
func NormalizeHashtag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	tag = hashtagInvalid.ReplaceAllString(tag, "")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// DedupHashtags normalizes tags and drops case-insensitive duplicates,
// keeping the first spelling and the original order.
func DedupHashtags(groups ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, tags := range groups {
		for _, tag := range tags {
			normalized := NormalizeHashtag(tag)
			if normalized == "" {
				continue
			}
			key := strings.ToLower(normalized)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, normalized)
		}
	}
	return out
}

// NormalizeMentions trims, prefixes with "@" and drops empty or repeated handles.
func NormalizeMentions(mentions []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range mentions {
		m = strings.TrimLeft(strings.TrimSpace(m), "@")
		if m == "" {
			continue
		}
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "@"+m)
	}
	return out
}

// RuneLen is the length users see, not the byte count.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
