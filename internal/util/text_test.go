package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "single tag",
			content:  "ramen night #noodles",
			expected: []string{"noodles"},
		},
		{
			name:     "multiple tags",
			content:  "#study session with #coffee",
			expected: []string{"study", "coffee"},
		},
		{
			name:     "duplicates deduplicated",
			content:  "#games all day #games",
			expected: []string{"games"},
		},
		{
			name:     "case folded",
			content:  "#Sleep and #SLEEP",
			expected: []string{"sleep"},
		},
		{
			name:     "no tags",
			content:  "a plain sentence",
			expected: nil,
		},
		{
			name:     "hash alone",
			content:  "issue # 42",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractHashtags(tc.content))
		})
	}
}

func TestMergeHashtags(t *testing.T) {
	tags := MergeHashtags([]string{"#Food", "food", " "}, "dinner was great #food #tasty")
	assert.Equal(t, []string{"food", "tasty"}, tags)

	tags = MergeHashtags(nil, "no tags here")
	assert.Empty(t, tags)
}
