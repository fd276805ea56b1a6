// Package resolve turns noisy free-text addresses into validated
// coordinates via a tiered geocoding waterfall.
package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// companySuffixes are legal-entity tokens that add nothing for geocoding
// and frequently break exact matches when left in place.
var companySuffixes = map[string]bool{
	"ад":   true,
	"оод":  true,
	"asa":  true,
	"as":   true,
	"a/s":  true,
	"ltd":  true,
	"gmbh": true,
	"inc":  true,
	"corp": true,
	"llc":  true,
}

var (
	// colonClauseRe matches a colon/semicolon-introduced clause up to the
	// next comma (e.g. ": warehouse B"). Such clauses describe internal
	// facilities, never geography.
	colonClauseRe = regexp.MustCompile(`[:;][^,]*`)

	spaceRe = regexp.MustCompile(`\s+`)

	// countryPostalCityRe finds "CC 1234 City" blocks (e.g. "BG 7000 Русе").
	countryPostalCityRe = regexp.MustCompile(`\b([A-Z]{2})\s*(\d{4,5})\s*,?\s*([\p{L}\d\-]+)`)

	// postalCityCountryRe finds trailing "1234 City, Country" blocks
	// (e.g. "9340 Asaa, Denmark").
	postalCityCountryRe = regexp.MustCompile(`(\d{4,5})\s*,?\s*([A-Za-z\-\s]+?)\s*,?\s*([A-Za-z\s]+)$`)

	postalRe     = regexp.MustCompile(`\d{4,5}`)
	postalOnlyRe = regexp.MustCompile(`^\d{4,5}$`)
)

// Simplify reduces a verbose address to the parts a geocoder can act on:
// street-level detail, postal code, city and country. Descriptive clauses
// after colons/semicolons and legal-entity suffixes are dropped.
func Simplify(address string) string {
	if address == "" {
		return address
	}

	addr := norm.NFC.String(strings.TrimSpace(address))

	addr = colonClauseRe.ReplaceAllString(addr, "")
	addr = spaceRe.ReplaceAllString(addr, " ")
	addr = stripCompanySuffixes(addr)
	addr = strings.Trim(strings.TrimSpace(addr), ",")
	addr = strings.TrimSpace(addr)

	// Country code + postal + city: keep that block plus one meaningful
	// token before it.
	if m := countryPostalCityRe.FindStringSubmatchIndex(addr); m != nil {
		country := addr[m[2]:m[3]]
		postal := addr[m[4]:m[5]]
		city := addr[m[6]:m[7]]
		minimal := country + " " + postal + " " + city
		before := strings.TrimRight(strings.TrimSpace(addr[:m[0]]), ",")
		if before != "" {
			segs := splitSegments(before)
			if len(segs) > 0 {
				return minimal + ", " + segs[len(segs)-1]
			}
		}
		return minimal
	}

	// Trailing postal + city + country: keep any street/company part in front.
	if m := postalCityCountryRe.FindStringSubmatchIndex(addr); m != nil {
		postal := addr[m[2]:m[3]]
		city := strings.TrimSpace(addr[m[4]:m[5]])
		country := strings.TrimSpace(addr[m[6]:m[7]])
		before := strings.TrimRight(strings.TrimSpace(addr[:m[0]]), ",")
		if before != "" {
			return before + ", " + postal + " " + city + ", " + country
		}
		return postal + " " + city + ", " + country
	}

	// Fallback: drop long trailing descriptions, keep the first two segments.
	segs := splitSegments(addr)
	if len(segs) > 2 {
		return strings.Join(segs[:2], ", ")
	}

	return addr
}

// stripCompanySuffixes removes trailing legal-entity tokens from each
// comma-separated segment ("Acme Corp Ltd" -> "Acme").
func stripCompanySuffixes(addr string) string {
	segs := splitSegments(addr)
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		words := strings.Fields(seg)
		for len(words) > 0 && companySuffixes[strings.ToLower(words[len(words)-1])] {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			continue
		}
		out = append(out, strings.Join(words, " "))
	}
	return strings.Join(out, ", ")
}

func splitSegments(s string) []string {
	var segs []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StrictMatch reports whether the geocoder's formatted result plausibly
// refers to the simplified address rather than a city-level approximation.
// It requires the postal code or a city-like token to appear in the
// formatted address, plus at least one other non-postal segment, so a
// city-only match fails when street or company detail was present.
func StrictMatch(simplified, formatted string) bool {
	if simplified == "" || formatted == "" {
		return false
	}

	c := normalize(simplified)
	f := normalize(formatted)

	hasPostal := false
	if postal := postalRe.FindString(c); postal != "" && strings.Contains(f, postal) {
		hasPostal = true
	}

	cityFound := false
	for _, tok := range strings.FieldsFunc(c, func(r rune) bool { return r == ',' || r == ' ' }) {
		if len([]rune(tok)) > 2 && !isNumeric(tok) && strings.Contains(f, tok) {
			cityFound = true
			break
		}
	}

	hasOther := false
	for _, seg := range splitSegments(c) {
		if postalOnlyRe.MatchString(seg) {
			continue
		}
		if len(seg) >= 3 && strings.Contains(f, seg) {
			hasOther = true
			break
		}
	}

	return (hasPostal || cityFound) && hasOther
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
