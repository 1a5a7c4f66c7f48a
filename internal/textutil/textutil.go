// Package textutil holds the string normalization shared by keyword matchers.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Normalize case-folds s, trims it and collapses internal whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so a fresh one is built per call.
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Tokens splits normalized text into words, dropping punctuation.
func Tokens(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsPhrase reports whether the word sequence of phrase appears
// contiguously in text. "cto" matches "CTO, Acme" but not "Director".
func ContainsPhrase(text, phrase string) bool {
	words := Tokens(text)
	want := Tokens(phrase)
	if len(want) == 0 || len(want) > len(words) {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j := range want {
			if words[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// MatchKeywords returns the keywords that occur as substrings of the
// normalized concatenation of texts, in keyword order.
func MatchKeywords(keywords []string, texts ...string) []string {
	var parts []string
	for _, t := range texts {
		if n := Normalize(t); n != "" {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	combined := strings.Join(parts, " ")

	var matched []string
	for _, kw := range keywords {
		if k := Normalize(kw); k != "" && strings.Contains(combined, k) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
