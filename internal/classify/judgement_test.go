package classify

import (
	"errors"
	"testing"
)

func TestParseJudgement(t *testing.T) {
	raw := `{
		"is_job_related": true,
		"company_extracted": "uShip",
		"company_match": "uShip",
		"status": "Rejected",
		"confidence": 0.85,
		"interview_date": null,
		"reasoning": "clear rejection language"
	}`

	j, err := ParseJudgement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !j.JobRelated || j.CompanyMatch != "uShip" || j.Status != "Rejected" {
		t.Errorf("unexpected judgement: %+v", j)
	}
	if j.Confidence != 0.85 {
		t.Errorf("got confidence %.2f, want 0.85", j.Confidence)
	}
	if j.InterviewDate != "" {
		t.Errorf("null interview_date should parse as empty, got %q", j.InterviewDate)
	}
}

func TestParseJudgementFencedJSON(t *testing.T) {
	raw := "```json\n{\"is_job_related\": false, \"status\": \"Other\", \"confidence\": 0.2}\n```"

	j, err := ParseJudgement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.JobRelated || j.Status != "Other" {
		t.Errorf("unexpected judgement: %+v", j)
	}
}

func TestParseJudgementNoneStrings(t *testing.T) {
	raw := `{"is_job_related": true, "company_extracted": "None", "company_match": "null", "status": "Applied"}`

	j, err := ParseJudgement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.CompanyExtracted != "" || j.CompanyMatch != "" {
		t.Errorf("spelled-out nulls should map to empty, got %+v", j)
	}
	if j.Confidence != 0.5 {
		t.Errorf("missing confidence should default to 0.5, got %.2f", j.Confidence)
	}
}

func TestParseJudgementMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "not json", raw: "I could not analyze this email."},
		{name: "error action payload", raw: `{"action": "error", "type": "RateLimited"}`},
		{name: "numeric status code", raw: `{"status": 418, "is_job_related": true}`},
		{name: "missing is_job_related", raw: `{"status": "Rejected"}`},
		{name: "missing status", raw: `{"is_job_related": true}`},
		{name: "self-reported parse failure", raw: `{"is_job_related": true, "status": "Other", "reasoning": "JSON parsing failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJudgement(tt.raw)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}
