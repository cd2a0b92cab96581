// Package identity canonicalizes player identity tags.
//
// A tag is the user-facing identity string, "name#NNNN": a name of
// letters, digits, underscores and hyphens, then a hash, then exactly
// four digits. Tags are compared and stored in lowercase canonical
// form. The slug is the URL-safe encoding of a tag with the hash
// replaced by a hyphen ("name-NNNN") and is re-derivable without a
// lookup table.
package identity

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidTag  = errors.New("invalid tag: must match name#NNNN")
	ErrInvalidSlug = errors.New("invalid slug: must match name-NNNN")
)

var (
	tagRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+#\d{4}$`)
	// Greedy prefix so a name that itself contains hyphens (or ends in
	// digits) always yields the LAST hyphen-plus-4-digits group as the
	// discriminator suffix.
	slugRegex = regexp.MustCompile(`^(.*)-(\d{4})$`)
)

// Tag is a canonical (lowercase) player identity string.
type Tag string

// NormalizeTag trims raw input and validates it against the tag
// grammar. The canonical form is the lowercase of the matched string.
func NormalizeTag(raw string) (Tag, error) {
	trimmed := strings.TrimSpace(raw)
	if !tagRegex.MatchString(trimmed) {
		return "", ErrInvalidTag
	}
	return Tag(strings.ToLower(trimmed)), nil
}

// Slug returns the URL-safe form of the tag ("name#NNNN" -> "name-NNNN").
func (t Tag) Slug() string {
	return strings.Replace(string(t), "#", "-", 1)
}

func (t Tag) String() string { return string(t) }

// ParseSlug decodes a URL slug back into a canonical tag. The prefix
// before the trailing "-NNNN" becomes the name, the four digits the
// discriminator. Returns ErrInvalidSlug when the slug has no 4-digit
// suffix or an empty name.
func ParseSlug(slug string) (Tag, error) {
	decoded, err := url.QueryUnescape(slug)
	if err != nil {
		return "", ErrInvalidSlug
	}
	m := slugRegex.FindStringSubmatch(decoded)
	if m == nil || m[1] == "" {
		return "", ErrInvalidSlug
	}
	tag, err := NormalizeTag(m[1] + "#" + m[2])
	if err != nil {
		return "", ErrInvalidSlug
	}
	return tag, nil
}
