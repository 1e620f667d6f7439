package validation

import (
	"regexp"
	"strings"
)

var (
	fullURLPattern    = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	bareDomainPattern = regexp.MustCompile(`(?:www\.)?[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}`)
)

// ExtractURLs returns the http(s) URLs in text, in order and without
// duplicates. When there are none, bare domains are returned with an
// https:// prefix.
func ExtractURLs(text string) []string {
	urls := unique(fullURLPattern.FindAllString(text, -1), func(u string) string {
		return strings.TrimRight(u, ".,;:!?)'")
	})
	if len(urls) > 0 {
		return urls
	}
	return unique(bareDomainPattern.FindAllString(text, -1), func(d string) string {
		return "https://" + d
	})
}

func unique(in []string, normalize func(string) string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
