package tracker

import (
	"fmt"
	"strings"
)

// MinConfidence is the floor below which no update is applied regardless of
// how clean the company and status signals are.
const MinConfidence = 0.6

// Phrases indicating a rejection that covers every open application at the
// company, not one specific position.
var bulkRejectionPhrases = []string{
	"all positions",
	"any of our openings",
	"all current openings",
	"future opportunities",
	"all applications",
}

// Decision is the outcome of record selection for one email. When Reasons is
// non-empty no update applies and Selected is nil; the reasons are surfaced,
// never silently dropped.
type Decision struct {
	Selected []Application
	Status   Status
	Bulk     bool
	Reasons  []string
}

// Update returns true when the decision carries records to update.
func (d Decision) Update() bool { return len(d.Reasons) == 0 && len(d.Selected) > 0 }

// Select narrows a resolved company plus the Oracle's raw status guess down
// to the specific records to update. emailText must be the normalized
// (lowercased) subject+body. candidates are all tracked applications for the
// matched company, in row order.
//
// Gate: a non-empty company match, a status that narrows into the closed
// enum, and confidence at or above MinConfidence. Failing any gate yields a
// no-update decision carrying every failed reason.
func Select(companyMatch, rawStatus string, confidence float64, emailText string, candidates []Application) Decision {
	var dec Decision

	st, stOK := ParseStatus(rawStatus)
	if companyMatch == "" {
		dec.Reasons = append(dec.Reasons, "no company match")
	}
	if !stOK {
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("unclear status (%q)", rawStatus))
	}
	if confidence < MinConfidence {
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("low confidence (%.2f)", confidence))
	}
	if len(dec.Reasons) > 0 {
		return dec
	}
	dec.Status = st

	if len(candidates) == 0 {
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("no applications found for company %q", companyMatch))
		return dec
	}
	if len(candidates) == 1 {
		dec.Selected = candidates[:1]
		return dec
	}

	// Multiple open applications to the same company: try to pin down the
	// position by title, then location, before falling back.
	for _, app := range candidates {
		if titleMentioned(app.Title, emailText) {
			dec.Selected = []Application{app}
			return dec
		}
	}
	for _, app := range candidates {
		loc := strings.ToLower(strings.TrimSpace(app.Location))
		if len(loc) > 3 && strings.Contains(emailText, loc) {
			dec.Selected = []Application{app}
			return dec
		}
	}

	if containsAny(emailText, bulkRejectionPhrases) {
		dec.Selected = candidates
		dec.Bulk = true
		return dec
	}

	// Conservative fallback: only the most recently applied record. Ambiguous
	// evidence must not touch older applications to the same company.
	dec.Selected = []Application{mostRecent(candidates)}
	return dec
}

// titleMentioned reports whether the email names the job title, either as the
// full phrase or with all of its first three words present. Titles of three
// characters or fewer are skipped to avoid false positives.
func titleMentioned(title, emailText string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if len(t) <= 3 {
		return false
	}
	if strings.Contains(emailText, t) {
		return true
	}
	words := strings.Fields(t)
	if len(words) > 3 {
		words = words[:3]
	}
	for _, w := range words {
		if !strings.Contains(emailText, w) {
			return false
		}
	}
	return len(words) > 0
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// mostRecent picks the candidate with the latest applied date. Unparseable
// dates sort as zero; ties keep the earliest row, matching the store's
// original row order.
func mostRecent(candidates []Application) Application {
	best := candidates[0]
	bestTime := best.AppliedTime()
	for _, c := range candidates[1:] {
		if t := c.AppliedTime(); t.After(bestTime) {
			best = c
			bestTime = t
		}
	}
	return best
}
