package config

import "strings"

const (
	PhoneMatchExact  = "exact"
	PhoneMatchSuffix = "suffix"
)

// IsPhoneAuthorized compares sender and configured number on their digits only.
// Suffix mode accepts a sender whose digits end with the configured digits, so a
// number stored without country code still matches.
func (s SecurityConfig) IsPhoneAuthorized(from string) bool {
	if !s.EnablePhoneAuth {
		return true
	}
	authorized := digitsOnly(s.AuthorizedPhone)
	sender := digitsOnly(from)
	if authorized == "" || sender == "" {
		return false
	}
	if s.PhoneMatch == PhoneMatchSuffix {
		return strings.HasSuffix(sender, authorized)
	}
	return sender == authorized
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
