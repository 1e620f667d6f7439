package utils

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

var (
	slugInvalid    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators = regexp.MustCompile(`[-\s]+`)
	htmlTag        = regexp.MustCompile(`<[^>]+>`)
)

// foldAccents decomposes and drops combining marks, so "Café" becomes "Cafe".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify builds a URL slug: lowercase, accents folded, punctuation removed,
// whitespace and dash runs collapsed to one dash, at most 50 characters and
// no leading or trailing dash.
func Slugify(title string) string {
	slug := strings.ToLower(foldAccents(title))
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.TrimRight(slug, "-")
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ReadingMinutes assumes 200 words per minute and never returns less than 1.
func ReadingMinutes(words int) int {
	return max(1, int(math.Round(float64(words)/200)))
}

// StripTags removes HTML tags.
func StripTags(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}

// TruncateRunes cuts s to at most n runes without splitting a character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
