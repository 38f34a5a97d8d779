// SPDX-License-Identifier: MIT

package post

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 80

var reDash = regexp.MustCompile(`-+`)

// Slugify converts a post title into a URL-safe, human-readable slug.
// Example: "Hello, Wörld!" → "hello-world"
func Slugify(title string) string {
	if title == "" {
		return "post"
	}

	// 1. Unicode NFKD decomposition so accented letters fold to their base
	// rune plus combining marks, which are dropped below.
	s := norm.NFKD.String(strings.ToLower(title))

	// 2. Keep only ASCII letters and digits; collapse everything else to a dash.
	var b strings.Builder
	lastWasDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		case unicode.IsMark(r):
			// combining mark from the decomposition, drop it
		case !lastWasDash:
			b.WriteRune('-')
			lastWasDash = true
		}
	}

	// 3. Trim and collapse dashes.
	slug := strings.Trim(b.String(), "-")
	slug = reDash.ReplaceAllString(slug, "-")

	// 4. Bound length for readability.
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		slug = strings.TrimRight(slug, "-")
	}

	if slug == "" {
		return "post"
	}
	return slug
}
