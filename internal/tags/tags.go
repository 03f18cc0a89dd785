// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package tags turns user input and post titles into lowercase keyword sets.
package tags

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minDerivedLen is the shortest token kept when deriving tags from a title.
// Tokens of this length or shorter are dropped.
const minDerivedLen = 2

// stopWords are never produced by Derive.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "on": true,
	"of": true, "for": true, "to": true, "with": true,
}

// Parse splits a comma-joined tag string, trimming whitespace and dropping
// empty entries. Tags are lowercased and de-duplicated, first occurrence wins.
func Parse(raw string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Derive builds a fallback tag set from a title: lowercase, split on
// whitespace, then drop stop-words and tokens of length <= 2.
// Leading and trailing punctuation is stripped from each token first.
//
// Example: "The Great Migration of Data" → ["great", "migration", "data"]
func Derive(title string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(title)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if stopWords[word] || utf8.RuneCountInString(word) <= minDerivedLen || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// IsStopWord reports whether word is excluded from derived tags.
func IsStopWord(word string) bool {
	return stopWords[strings.ToLower(word)]
}
