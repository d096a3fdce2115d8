package deviations

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var foldCase = cases.Lower(language.Und)

// protectedFamilies are the recognized anti-discrimination keyword
// families (§4.2). Matching is case-insensitive substring/token matching,
// deliberately conservative: false positives are acceptable, false
// negatives are not. Extend freely; never shrink.
var protectedFamilies = [][]string{
	{"age", "years_old"},
	{"gender", "sex"},
	{"race", "ethnic", "ethnicity"},
	{"religion"},
	{"national_origin", "nationality"},
	{"disability", "disabled"},
	{"marital_status"},
	{"genetic"},
}

// ageFamily identifies the keyword family used to decide when a numeric
// attribute gets the fixed 40/40+ auto-bucketing split instead of a median
// split.
var ageFamily = protectedFamilies[0]

func isProtectedAttribute(name string) bool {
	folded := foldCase.String(strings.TrimSpace(name))
	for _, family := range protectedFamilies {
		for _, keyword := range family {
			if strings.Contains(folded, keyword) {
				return true
			}
		}
	}
	return false
}

func matchesFamily(name string, family []string) bool {
	folded := foldCase.String(strings.TrimSpace(name))
	for _, keyword := range family {
		if strings.Contains(folded, keyword) {
			return true
		}
	}
	return false
}

func isAgeLike(name string) bool {
	return matchesFamily(name, ageFamily)
}

// commonStopwords are filtered out when tokenizing AgentPurpose into a
// keyword set for the metric purpose-boost.
var commonStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "for": true,
	"and": true, "or": true, "in": true, "on": true, "is": true, "are": true,
	"be": true, "with": true, "that": true, "this": true, "it": true,
}

// purposeKeywords tokenizes AgentPurpose into a lowercase, stop-word
// filtered keyword set used for purpose-matching in Extract (§4.2's CV-floor
// halving and purpose-first metric ordering).
func purposeKeywords(purpose string) map[string]bool {
	folded := foldCase.String(purpose)
	fields := strings.Fields(folded)
	keywords := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f == "" || commonStopwords[f] {
			continue
		}
		keywords[f] = true
	}
	return keywords
}

// sharesToken reports whether any whitespace/underscore/dot-separated
// token of name appears in keywords.
func sharesToken(name string, keywords map[string]bool) bool {
	if len(keywords) == 0 {
		return false
	}
	folded := foldCase.String(name)
	for _, sep := range []string{"_", ".", "-"} {
		folded = strings.ReplaceAll(folded, sep, " ")
	}
	for _, tok := range strings.Fields(folded) {
		if keywords[tok] {
			return true
		}
	}
	return false
}
