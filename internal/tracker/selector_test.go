package tracker

import (
	"strings"
	"testing"
)

func TestSelectGates(t *testing.T) {
	candidates := []Application{{Row: 0, Company: "Acme", Title: "Engineer"}}

	tests := []struct {
		name       string
		company    string
		status     string
		confidence float64
		wantReason string
	}{
		{"no company", "", "Rejected", 0.9, "no company match"},
		{"unparseable status", "Acme", "Other", 0.9, "unclear status"},
		{"empty status", "Acme", "", 0.9, "unclear status"},
		{"low confidence", "Acme", "Rejected", 0.4, "low confidence (0.40)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Select(tt.company, tt.status, tt.confidence, "some email text", candidates)
			if dec.Update() {
				t.Fatal("gated decision must not update")
			}
			if len(dec.Selected) != 0 {
				t.Error("gated decision must select no records")
			}
			found := false
			for _, r := range dec.Reasons {
				if strings.Contains(r, tt.wantReason) {
					found = true
				}
			}
			if !found {
				t.Errorf("reasons %v missing %q", dec.Reasons, tt.wantReason)
			}
		})
	}
}

func TestSelectCollectsAllFailedGates(t *testing.T) {
	dec := Select("", "maybe", 0.1, "text", nil)
	if len(dec.Reasons) != 3 {
		t.Errorf("expected all three gate reasons, got %v", dec.Reasons)
	}
}

func TestSelectSingleCandidate(t *testing.T) {
	candidates := []Application{{Row: 4, Company: "Globex", Title: "Backend Developer", Status: StatusApplied}}
	dec := Select("Globex", "Rejected", 0.85, "we are pursuing other candidates", candidates)
	if !dec.Update() {
		t.Fatalf("expected update, got reasons %v", dec.Reasons)
	}
	if len(dec.Selected) != 1 || dec.Selected[0].Row != 4 {
		t.Errorf("expected the single candidate selected, got %v", dec.Selected)
	}
	if dec.Status != StatusRejected {
		t.Errorf("expected Rejected, got %q", dec.Status)
	}
}

func TestSelectByTitle(t *testing.T) {
	candidates := []Application{
		{Row: 0, Title: "Data Analyst", DateApplied: "2025-01-01"},
		{Row: 1, Title: "Software Engineer", DateApplied: "2025-02-01"},
	}

	dec := Select("Acme", "Interview Scheduled", 0.9,
		"regarding your data analyst application, we would like to schedule", candidates)
	if !dec.Update() || len(dec.Selected) != 1 {
		t.Fatalf("expected a single selection, got %+v", dec)
	}
	if dec.Selected[0].Row != 0 {
		t.Errorf("title match should pick row 0, got %d", dec.Selected[0].Row)
	}

	// Partial mention: first three title words present but not as one phrase.
	dec = Select("Acme", "Rejected", 0.9,
		"the software role you applied for requires an engineer on site", candidates)
	if len(dec.Selected) != 1 || dec.Selected[0].Row != 1 {
		t.Errorf("word-wise title match should pick row 1, got %+v", dec.Selected)
	}
}

func TestSelectByLocation(t *testing.T) {
	candidates := []Application{
		{Row: 0, Title: "SWE", Location: "Austin", DateApplied: "2025-01-01"},
		{Row: 1, Title: "SWE", Location: "New York", DateApplied: "2025-02-01"},
	}
	dec := Select("Acme", "Rejected", 0.9, "your application for our austin office", candidates)
	if len(dec.Selected) != 1 || dec.Selected[0].Row != 0 {
		t.Errorf("location match should pick row 0, got %+v", dec.Selected)
	}
}

func TestSelectBulkRejection(t *testing.T) {
	candidates := []Application{
		{Row: 0, Title: "SWE", DateApplied: "2025-01-01"},
		{Row: 1, Title: "PM", DateApplied: "2025-02-01"},
	}
	dec := Select("Acme", "Rejected", 0.9,
		"we will not be moving forward with your candidacy for all positions", candidates)
	if !dec.Bulk {
		t.Error("expected bulk decision")
	}
	if len(dec.Selected) != 2 {
		t.Errorf("bulk rejection should select every candidate, got %d", len(dec.Selected))
	}
}

func TestSelectAmbiguousFallsBackToMostRecent(t *testing.T) {
	candidates := []Application{
		{Row: 0, Title: "SWE", DateApplied: "2025-01-01"},
		{Row: 1, Title: "PM", DateApplied: "2025-03-01"},
		{Row: 2, Title: "SRE", DateApplied: "2025-02-01"},
	}
	dec := Select("Acme", "Rejected", 0.9, "thank you for applying", candidates)
	if len(dec.Selected) != 1 {
		t.Fatalf("ambiguous evidence must touch exactly one record, got %d", len(dec.Selected))
	}
	if dec.Selected[0].Row != 1 {
		t.Errorf("expected the most recently applied record (row 1), got %d", dec.Selected[0].Row)
	}
	if dec.Bulk {
		t.Error("fallback must not be a bulk decision")
	}
}

func TestSelectMostRecentUnparseableDates(t *testing.T) {
	candidates := []Application{
		{Row: 0, Title: "SWE", DateApplied: "not a date"},
		{Row: 1, Title: "PM", DateApplied: ""},
	}
	dec := Select("Acme", "Rejected", 0.9, "thank you for applying", candidates)
	if len(dec.Selected) != 1 || dec.Selected[0].Row != 0 {
		t.Errorf("unparseable dates should keep the earliest row, got %+v", dec.Selected)
	}
}
