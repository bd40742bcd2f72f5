package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordPattern matches Unicode word runs: letters, marks, digits and
// underscores.
var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Words returns the lowercase word runs of text as a set.
func Words(text string) map[string]bool {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// ContainsAny reports whether lowered contains any of the substrings.
func ContainsAny(lowered string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(lowered, s) {
			return true
		}
	}
	return false
}

// CountContained counts how many substrings occur in lowered.
func CountContained(lowered string, substrings []string) int {
	n := 0
	for _, s := range substrings {
		if s != "" && strings.Contains(lowered, s) {
			n++
		}
	}
	return n
}

// ContainsTerm reports whether term occurs in lowered without being glued to
// surrounding letters, digits or underscores. Terms may contain punctuation
// such as ".net" or "c#".
func ContainsTerm(lowered, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; start <= len(lowered)-len(term); {
		i := strings.Index(lowered[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if boundaryBefore(lowered, i, term) && boundaryAfter(lowered, end, term) {
			return true
		}
		start = i + 1
	}
	return false
}

// ContainsAnyTerm is ContainsTerm over a list.
func ContainsAnyTerm(lowered string, terms []string) bool {
	for _, t := range terms {
		if ContainsTerm(lowered, t) {
			return true
		}
	}
	return false
}

func boundaryBefore(s string, i int, term string) bool {
	first, _ := utf8.DecodeRuneInString(term)
	if i == 0 || !isWordRune(first) {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(prev)
}

func boundaryAfter(s string, end int, term string) bool {
	last, _ := utf8.DecodeLastRuneInString(term)
	if end == len(s) || !isWordRune(last) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(next)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.M, r)
}
