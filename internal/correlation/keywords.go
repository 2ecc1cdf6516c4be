// Package correlation extracts keywords from signal titles and groups
// related signals into topic clusters.
package correlation

import (
	"sort"
	"strings"
	"unicode"
)

// Keywords extracts the keyword set of a title: lowercased, non-alphanumerics
// replaced by spaces, stopwords and words of two characters or fewer dropped.
// The result is sorted and unique.
func Keywords(title string, stopwords map[string]bool) []string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) <= 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// StopwordSet builds a lookup set from a word list.
func StopwordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}

// Overlap counts the words two sorted keyword sets share.
func Overlap(a, b []string) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// ContainsWord checks if text contains word as a whole word (not substring).
// Both arguments are expected lowercased.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	// Check left boundary
	if idx > 0 && isAlphaNum(text[idx-1]) {
		return ContainsWord(text[idx+len(word):], word)
	}

	// Check right boundary
	end := idx + len(word)
	if end < len(text) && isAlphaNum(text[end]) {
		return ContainsWord(text[end:], word)
	}

	return true
}

// CountWord counts whole-word occurrences of word in text.
func CountWord(text, word string) int {
	if word == "" {
		return 0
	}
	n := 0
	for {
		idx := strings.Index(text, word)
		if idx < 0 {
			return n
		}
		end := idx + len(word)
		leftOK := idx == 0 || !isAlphaNum(text[idx-1])
		rightOK := end == len(text) || !isAlphaNum(text[end])
		if leftOK && rightOK {
			n++
		}
		text = text[end:]
	}
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
