// Package match resolves free-text company names extracted from emails to
// the canonical company names in the tracking store. Legal-entity suffixes
// and separator inconsistencies are the dominant source of mismatch, so
// matching is tiered: exact on normalized variants, then substring overlap,
// then an alphanumeric-compaction check for acronyms like "M3USA" vs
// "M3 USA Corporation".
package match

import (
	"regexp"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`[\s\-.]`)
	suffixRe    = regexp.MustCompile(`\s*(inc|llc|corp|corporation|ltd|limited|company|co|group|services|solutions|technologies|technology|tech|systems|international|global)\.?$`)
	alnumRe     = regexp.MustCompile(`[^a-z0-9]`)
)

// substringFloor is the minimum length-ratio score a substring hit must
// exceed before it counts as a match.
const substringFloor = 0.6

// acronymScore is assigned when two names are equal after dropping every
// non-alphanumeric character.
const acronymScore = 0.85

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func stripSeparators(name string) string {
	return separatorRe.ReplaceAllString(name, "")
}

func stripSuffix(name string) string {
	return suffixRe.ReplaceAllString(name, "")
}

func alnum(name string) string {
	return alnumRe.ReplaceAllString(normalize(name), "")
}

// candidateVariants produces the four comparison forms of the extracted
// name: normalized, separator-stripped, legal-suffix-stripped, and both
// combined. The canonical side keeps its legal suffix for the exact and
// substring tiers so that a compacted spelling of a suffixed canonical name
// ("M3USA" for "M3 USA Corporation") resolves through the acronym tier with
// its reduced score instead of claiming an exact hit.
func candidateVariants(name string) [4]string {
	base := normalize(name)
	noSuffix := stripSuffix(base)
	return [4]string{base, stripSeparators(base), noSuffix, stripSeparators(noSuffix)}
}

// Company resolves candidate against the known canonical names, returning
// the best match and a score in [0,1]. An exact variant hit scores 1.0 and
// wins immediately; substring overlap scores by length ratio and must exceed
// 0.6; an alphanumeric-compaction match scores 0.85. No match returns
// ("", 0).
func Company(candidate string, known []string) (string, float64) {
	if strings.TrimSpace(candidate) == "" {
		return "", 0
	}

	cand := candidateVariants(candidate)

	bestMatch := ""
	bestScore := 0.0
	for _, name := range known {
		base := normalize(name)
		forms := [2]string{base, stripSeparators(base)}
		for _, cv := range cand {
			for _, nv := range forms {
				if cv == "" || nv == "" {
					continue
				}
				if cv == nv {
					return name, 1.0
				}
				if strings.Contains(cv, nv) || strings.Contains(nv, cv) {
					score := ratio(len(cv), len(nv))
					if score > bestScore && score > substringFloor {
						bestMatch = name
						bestScore = score
					}
				}
			}
		}
	}
	if bestMatch != "" {
		return bestMatch, bestScore
	}

	// Acronym / compacted spelling: equal after dropping every
	// non-alphanumeric character (with or without the canonical name's legal
	// suffix), as long as something of substance remains.
	candLetters := alnum(candidate)
	if len(candLetters) > 2 {
		for _, name := range known {
			if alnum(name) == candLetters || alnum(stripSuffix(normalize(name))) == candLetters {
				return name, acronymScore
			}
		}
	}

	return "", 0
}

func ratio(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
