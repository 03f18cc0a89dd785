// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug derives URL paths for posts from their titles.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxLength bounds generated slugs. Longer titles are cut at a word boundary.
const MaxLength = 80

// Fallback is used when a title has no usable characters.
const Fallback = "post"

var (
	separators      = regexp.MustCompile(`[\s_]+`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9-]`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Generate creates a URL-friendly slug from a title.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = separators.ReplaceAllString(result, "-")
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxLength {
		result = result[:MaxLength]
		if i := strings.LastIndexByte(result, '-'); i > 0 {
			result = result[:i]
		}
		result = strings.Trim(result, "-")
	}
	return result
}

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Unique returns the first of base, base-2, base-3, ... that exists reports
// free. After too many collisions a random suffix is used instead.
func Unique(ctx context.Context, title string, exists ExistsFunc) (string, error) {
	base := Generate(title)
	if base == "" {
		base = Fallback
	}
	candidate := base
	for n := 2; n <= 100; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return base + "-" + uuid.NewString()[:8], nil
}
