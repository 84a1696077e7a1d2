package classify

import (
	"regexp"
)

// The Oracle is prone to two high-frequency failure modes: marking clear
// rejections as unrelated or "Other", and giving strong unambiguous signals
// low confidence. These deterministic phrase rules correct both after the
// fact, keeping the override logic auditable independent of how the Oracle
// is prompted.

var rejectionPhrases = []*regexp.Regexp{
	regexp.MustCompile(`unable\s+to\s+employ`),
	regexp.MustCompile(`unable\s+to\s+sponsor`),
	regexp.MustCompile(`cannot\s+sponsor`),
	regexp.MustCompile(`unable\s+to\s+transfer`),
	regexp.MustCompile(`pursuing\s+other\s+candidates`),
	regexp.MustCompile(`not\s+moving\s+forward`),
	regexp.MustCompile(`decided\s+to\s+move\s+forward\s+with\s+other`),
	regexp.MustCompile(`unfortunately.{0,80}unable`),
	regexp.MustCompile(`regret\s+to\s+inform`),
	regexp.MustCompile(`not\s+selected`),
}

var interestPhrase = regexp.MustCompile(`thank\s+you\s+for\s+your\s+interest`)

// Correct applies the deterministic override rules to an Oracle judgement.
// subject and body must already be normalized (lowercase, whitespace
// collapsed). Pure: the input judgement is not modified.
func Correct(j Judgement, subject, body string) Judgement {
	if matchesAny(rejectionPhrases, subject) || matchesAny(rejectionPhrases, body) {
		if !j.JobRelated {
			j.JobRelated = true
		}
		if j.Status == "Other" || j.Status == "" {
			j.Status = "Rejected"
		}
		if j.Confidence < 0.7 {
			j.Confidence = 0.8
		}
	}

	// "Thank you for your interest" emails are about the sender's
	// application even when the Oracle says otherwise.
	if interestPhrase.MatchString(subject) || interestPhrase.MatchString(body) {
		if !j.JobRelated {
			j.JobRelated = true
			if j.Confidence < 0.7 {
				j.Confidence = 0.7
			}
		}
	}

	return j
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
