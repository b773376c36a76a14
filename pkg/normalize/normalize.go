// Package normalize holds the deterministic text canonicalization used by
// every downstream comparison. All functions are pure, total and idempotent:
// normalizing an already-normalized value is a no-op, and nil-ish input
// yields the empty string.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	articlesRe   = regexp.MustCompile(`\b(the|a|an)\b`)
	suffixesRe   = regexp.MustCompile(`\b(restaurant|cafe|bar|grill|kitchen|eatery|bistro|brasserie)\b`)
	quotesRe     = regexp.MustCompile("['\"`]")
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// addressAbbrevs maps long street-type and directional tokens to their
// canonical short forms. The short forms are fixed points, which keeps
// NormalizeAddress idempotent.
var addressAbbrevs = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bstreet\b`), "st"},
	{regexp.MustCompile(`\bavenue\b`), "ave"},
	{regexp.MustCompile(`\bboulevard\b`), "blvd"},
	{regexp.MustCompile(`\bdrive\b`), "dr"},
	{regexp.MustCompile(`\broad\b`), "rd"},
	{regexp.MustCompile(`\blane\b`), "ln"},
	{regexp.MustCompile(`\bplace\b`), "pl"},
	{regexp.MustCompile(`\bcourt\b`), "ct"},
	{regexp.MustCompile(`\bsuite\b`), "ste"},
	{regexp.MustCompile(`\bwest\b`), "w"},
	{regexp.MustCompile(`\beast\b`), "e"},
	{regexp.MustCompile(`\bnorth\b`), "n"},
	{regexp.MustCompile(`\bsouth\b`), "s"},
}

// Name lowercases, strips leading articles and generic business-type
// suffixes, removes punctuation and collapses whitespace.
func Name(name string) string {
	if name == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(name))
	s = articlesRe.ReplaceAllString(s, "")
	s = quotesRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = suffixesRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Address lowercases, contracts street-type and directional abbreviations,
// strips punctuation and collapses whitespace.
func Address(address string) string {
	if address == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(address))
	for _, a := range addressAbbrevs {
		s = a.re.ReplaceAllString(s, a.repl)
	}
	s = punctRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Phone reduces a phone number to its digits, keeping a leading plus.
func Phone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + digits
	}
	return digits
}

// Website extracts the registrable host (www-stripped) for comparison.
// Unparseable values fall back to lowercase-trimmed.
func Website(website string) string {
	if website == "" {
		return ""
	}
	raw := website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(website))
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Hours compares opening-hours blobs as trimmed lowercase strings. No
// structured parser: agreement means the sources said the same thing.
func Hours(hours string) string {
	return strings.ToLower(strings.TrimSpace(hours))
}

// Description lowercases and collapses whitespace for conflict detection.
func Description(description string) string {
	if description == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(description))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// ForField dispatches to the field-specific normalizer; unknown fields get
// the description treatment (lowercase, collapsed).
func ForField(field, value string) string {
	switch field {
	case "name":
		return Name(value)
	case "address", "address_street":
		return Address(value)
	case "phone":
		return Phone(value)
	case "website":
		return Website(value)
	case "hours":
		return Hours(value)
	default:
		return Description(value)
	}
}
