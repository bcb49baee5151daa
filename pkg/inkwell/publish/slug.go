package publish

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// PostSlugMaxLength leaves room for a numeric suffix inside the 120 char column.
	PostSlugMaxLength = 110
	// DefaultPostSlug is used when a title has no slug-able characters.
	DefaultPostSlug = "post"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds s to ASCII, lowercases it and collapses every run of
// non-alphanumerics into a single dash. The result is at most maxLen bytes
// (maxLen <= 0 means unbounded) and never starts or ends with a dash.
//
//	"Hello, World!"  → "hello-world"
//	"Crème Brûlée"   → "creme-brulee"
//	"  --Go 1.25-- " → "go-1-25"
func Slugify(s string, maxLen int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		folded = s
	}

	slug := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")

	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}

// AssignSlug returns a slug for title that no other post uses.
// excludeID is the ID of the post being saved (0 for a new post), so that
// re-saving a post never collides with itself.
//
// The result is only a candidate: the unique index on posts.slug has the final
// word, and callers retry on conflict.
func AssignSlug(ctx context.Context, posts PostStore, title string, excludeID uint) (string, error) {
	base := Slugify(title, PostSlugMaxLength)
	if base == "" {
		base = DefaultPostSlug
	}

	slug := base
	for counter := 1; ; counter++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		exists, err := posts.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}
