package util

import (
	"regexp"
	"strings"
)

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]{1,40})`)

// ExtractHashtags returns the lowercased, deduplicated hashtags found in
// content, in first-appearance order. Used to backfill a post's hashtag list
// when the author writes tags inline instead of filling the field.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// MergeHashtags combines explicitly supplied tags with tags extracted from
// content, preserving the explicit ones first and deduplicating.
func MergeHashtags(explicit []string, content string) []string {
	seen := make(map[string]struct{}, len(explicit))
	var tags []string
	for _, tag := range explicit {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, tag := range ExtractHashtags(content) {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
