package classify

import (
	"testing"
)

func TestRejectionOverrides(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unable to sponsor",
			body: "we are unable to sponsor work visas at this time",
		},
		{
			name: "pursuing other candidates",
			body: "we have decided to continue pursuing other candidates whose experience more closely matches",
		},
		{
			name: "regret to inform",
			body: "we regret to inform you that your application was not successful",
		},
		{
			name: "not moving forward",
			body: "after careful review we are not moving forward with your candidacy",
		},
		{
			name: "unfortunately unable",
			body: "unfortunately, we are unable to employ candidates requiring sponsorship",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Judgement{JobRelated: false, Status: "Other", Confidence: 0.3}
			got := Correct(j, "", tt.body)

			if !got.JobRelated {
				t.Errorf("expected is_job_related forced to true")
			}
			if got.Status != "Rejected" {
				t.Errorf("got status %q, want Rejected", got.Status)
			}
			if got.Confidence < 0.8 {
				t.Errorf("got confidence %.2f, want >= 0.8", got.Confidence)
			}
		})
	}
}

func TestRejectionPhraseInSubject(t *testing.T) {
	j := Judgement{JobRelated: false, Status: "Other", Confidence: 0.4}
	got := Correct(j, "you were not selected for the position", "thank you for applying.")

	if !got.JobRelated || got.Status != "Rejected" || got.Confidence < 0.8 {
		t.Errorf("subject-only rejection phrase not corrected: %+v", got)
	}
}

func TestRejectionKeepsValidStatus(t *testing.T) {
	// A phrase hit must not rewrite a status the Oracle already got right.
	j := Judgement{JobRelated: true, Status: "Rejected", Confidence: 0.9}
	got := Correct(j, "", "we regret to inform you")

	if got.Status != "Rejected" || got.Confidence != 0.9 {
		t.Errorf("correct judgement was altered: %+v", got)
	}
}

func TestThankYouForInterest(t *testing.T) {
	j := Judgement{JobRelated: false, Status: "Other", Confidence: 0.4}
	got := Correct(j, "", "thank you for your interest in uship. we will keep your resume on file.")

	if !got.JobRelated {
		t.Errorf("expected is_job_related forced to true")
	}
	if got.Confidence < 0.7 {
		t.Errorf("got confidence %.2f, want >= 0.7", got.Confidence)
	}
	// Interest alone is not a rejection; status stays as the Oracle left it.
	if got.Status != "Other" {
		t.Errorf("got status %q, want Other", got.Status)
	}
}

func TestNoPhraseNoChange(t *testing.T) {
	j := Judgement{JobRelated: false, Status: "Other", Confidence: 0.3, Reasoning: "newsletter"}
	got := Correct(j, "weekly digest", "here is what happened this week in tech.")

	if got != j {
		t.Errorf("judgement changed without any phrase evidence: %+v", got)
	}
}
