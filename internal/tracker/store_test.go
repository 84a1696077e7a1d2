package tracker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const sampleCSV = `Job ID,Title,Company,Work Location,Status,Date Applied,Interview Date,Notes,Resume
J1,Software Engineer,Acme Inc.,Remote,Applied,2025-01-10,,,resume_v2.pdf
J2,Data Analyst,Acme Inc.,New York,Applied,2025-02-01,,,resume_v2.pdf
J3,Backend Developer,Globex,Austin,Interviewed,2025-01-15,2025-01-20,First round done,resume_v1.pdf
`

func writeStore(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applications.csv")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write test store: %v", err)
	}
	return path
}

func TestOpenAndRoundTrip(t *testing.T) {
	path := writeStore(t, sampleCSV)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", s.Len())
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved store: %v", err)
	}
	// Columns outside the reconciliation core must survive a round trip.
	if !strings.Contains(string(data), "resume_v2.pdf") {
		t.Error("unknown column dropped on save")
	}
	if !strings.Contains(string(data), "First round done") {
		t.Error("notes dropped on save")
	}
}

func TestOpenCreatesMissingColumns(t *testing.T) {
	path := writeStore(t, "Title,Company,Date Applied\nEngineer,Acme,2025-01-10\n")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	apps := s.Applications()
	if len(apps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(apps))
	}
	if apps[0].Status != StatusApplied {
		t.Errorf("missing Status column should default to Applied, got %q", apps[0].Status)
	}
	if apps[0].Notes != "" || apps[0].InterviewDate != "" {
		t.Errorf("created columns should be empty, got notes=%q interview=%q", apps[0].Notes, apps[0].InterviewDate)
	}
}

func TestOpenFillsBlankStatus(t *testing.T) {
	path := writeStore(t, "Title,Company,Status\nEngineer,Acme,\nAnalyst,Globex,Rejected\n")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	apps := s.Applications()
	if apps[0].Status != StatusApplied {
		t.Errorf("blank status should become Applied, got %q", apps[0].Status)
	}
	if apps[1].Status != StatusRejected {
		t.Errorf("existing status must be preserved, got %q", apps[1].Status)
	}
}

func TestLocationAlias(t *testing.T) {
	path := writeStore(t, "Title,Company,Location,Status\nEngineer,Acme,Remote,Applied\n")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := s.Applications()[0].Location; got != "Remote" {
		t.Errorf("Location alias not honored, got %q", got)
	}
}

func TestMatchCompanyTiers(t *testing.T) {
	path := writeStore(t, sampleCSV)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if got := s.MatchCompany("Acme Inc."); len(got) != 2 {
		t.Errorf("exact match: expected 2 rows, got %d", len(got))
	}
	if got := s.MatchCompany("acme inc."); len(got) != 2 {
		t.Errorf("case-insensitive match: expected 2 rows, got %d", len(got))
	}
	if got := s.MatchCompany("Finite State Machines"); len(got) != 0 {
		t.Errorf("unrelated name matched %d rows", len(got))
	}
	if got := s.MatchCompany(""); got != nil {
		t.Error("empty name should match nothing")
	}
}

func TestSetStatusAndAppendNote(t *testing.T) {
	path := writeStore(t, sampleCSV)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.SetStatus(0, StatusRejected)
	s.AppendNote(0, "first note")
	s.AppendNote(0, "second note")

	app := s.Applications()[0]
	if app.Status != StatusRejected {
		t.Errorf("status not updated, got %q", app.Status)
	}
	if app.Notes != "first note\nsecond note" {
		t.Errorf("notes should grow by appending, got %q", app.Notes)
	}

	// Append onto existing notes must not overwrite them.
	s.AppendNote(2, "second round scheduled")
	if got := s.Applications()[2].Notes; got != "First round done\nsecond round scheduled" {
		t.Errorf("existing note clobbered, got %q", got)
	}
}

func TestAuditNote(t *testing.T) {
	now := time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC)

	note := AuditNote(now, StatusApplied, StatusRejected, "Update on your application to Acme", 0.85, 1, 1)
	want := `[2025-03-04 14:30] Status updated: 'Applied' -> 'Rejected' | Email: "Update on your application to Acme" | Confidence: 0.85`
	if note != want {
		t.Errorf("note mismatch:\n got %q\nwant %q", note, want)
	}

	long := strings.Repeat("x", 60)
	note = AuditNote(now, StatusApplied, StatusRejected, long, 0.9, 3, 1)
	if !strings.Contains(note, strings.Repeat("x", 50)+"...") {
		t.Errorf("long subject not truncated: %q", note)
	}
	if !strings.Contains(note, "3 total applications to this company, updated 1") {
		t.Errorf("multi-application note missing: %q", note)
	}

	// Truncation must not split a multi-byte rune.
	accented := strings.Repeat("é", 60)
	note = AuditNote(now, StatusApplied, StatusRejected, accented, 0.9, 1, 1)
	if !utf8.ValidString(note) {
		t.Errorf("truncated note is not valid UTF-8: %q", note)
	}
	if !strings.Contains(note, strings.Repeat("é", 50)+"...") {
		t.Errorf("accented subject not truncated on a rune boundary: %q", note)
	}
}

func TestComputeStats(t *testing.T) {
	path := writeStore(t, sampleCSV)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stats := s.ComputeStats()
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.ByStatus[StatusApplied] != 2 || stats.ByStatus[StatusInterviewed] != 1 {
		t.Errorf("unexpected status counts: %v", stats.ByStatus)
	}
	// One of three rows reached the interview stage.
	if stats.ResponseRate < 33.0 || stats.ResponseRate > 34.0 {
		t.Errorf("expected response rate ~33.3, got %.2f", stats.ResponseRate)
	}
}
