// Package hashtag extracts "#token" annotations from note text. Extraction
// is a pure function of the text: no I/O, no state.
package hashtag

import "regexp"

// tagRE matches a '#' followed by at least one letter, digit or underscore.
// Trailing punctuation ("#food!") is not part of the tag.
var tagRE = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Extract returns the hashtags of text in order of first appearance, with
// duplicates removed. The leading '#' is kept, matching how tags are stored
// and displayed. An empty or tag-free text yields a nil slice.
func Extract(text string) []string {
	matches := tagRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		tags = append(tags, m)
	}
	return tags
}
