package publish

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mikepea/inkwell/pkg/inkwell/models"
)

// TagSlugMaxLength bounds the normalized tag key.
const TagSlugMaxLength = 100

// TagInput is one tag as submitted: its normalized key and display name.
type TagInput struct {
	Key  string
	Name string
}

// ParseTags splits comma-separated tag text into trimmed, non-empty names,
// in input order.
func ParseTags(input string) []string {
	var names []string
	for _, piece := range strings.Split(input, ",") {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			names = append(names, piece)
		}
	}
	return names
}

// TagKey returns the normalized key for a tag name. Names without any
// slug-able characters fall back to a lowercased, hyphenated form of the raw
// text so that non-Latin tags still get a key.
func TagKey(name string) string {
	if key := Slugify(name, TagSlugMaxLength); key != "" {
		return key
	}

	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	if utf8.RuneCountInString(key) > TagSlugMaxLength {
		key = string([]rune(key)[:TagSlugMaxLength])
	}
	return key
}

// NormalizeTags parses tag text and deduplicates it by key. A key keeps the
// position of its first occurrence and the display name of its last one.
func NormalizeTags(input string) []TagInput {
	var out []TagInput
	index := make(map[string]int)
	for _, name := range ParseTags(input) {
		key := TagKey(name)
		if i, ok := index[key]; ok {
			out[i].Name = name
			continue
		}
		index[key] = len(out)
		out = append(out, TagInput{Key: key, Name: name})
	}
	return out
}

// ResolveTags maps tag text to stored tags, creating missing ones and
// renaming existing ones whose display name changed.
func ResolveTags(ctx context.Context, store TagStore, input string) ([]models.Tag, error) {
	inputs := NormalizeTags(input)
	resolved := make([]models.Tag, 0, len(inputs))

	for _, in := range inputs {
		tag, err := store.GetOrCreate(ctx, in.Key, in.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", in.Key, err)
		}
		if tag.Name != in.Name {
			if err := store.Rename(ctx, tag, in.Name); err != nil {
				return nil, fmt.Errorf("rename tag %q: %w", in.Key, err)
			}
		}
		resolved = append(resolved, *tag)
	}

	return resolved, nil
}
