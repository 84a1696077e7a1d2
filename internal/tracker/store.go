package tracker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Column names the reconciliation core depends on. Other columns (resume
// path, job link, HR contact, ...) are carried through reads and writes
// untouched.
const (
	colJobID         = "Job ID"
	colTitle         = "Title"
	colCompany       = "Company"
	colLocation      = "Work Location"
	colStatus        = "Status"
	colDateApplied   = "Date Applied"
	colInterviewDate = "Interview Date"
	colNotes         = "Notes"
)

// Store holds the tracking CSV in memory: the full header plus every row,
// read wholesale at pass start and written wholesale on Save. It is not safe
// for concurrent use; the scan pipeline is strictly sequential.
type Store struct {
	path   string
	header []string
	rows   [][]string
	col    map[string]int
}

// Open reads the tracking store from path. Missing required columns are
// created: Status defaults to "Applied", Interview Date and Notes default to
// empty.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse tracking store: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tracking store %s has no header row", path)
	}

	s := &Store{
		path:   path,
		header: records[0],
		rows:   records[1:],
	}
	s.reindex()

	// Pad short rows so every row has a cell for every column.
	for i, row := range s.rows {
		for len(row) < len(s.header) {
			row = append(row, "")
		}
		s.rows[i] = row
	}

	s.ensureColumn(colStatus, string(StatusApplied))
	s.ensureColumn(colInterviewDate, "")
	s.ensureColumn(colNotes, "")

	// Fill rows that predate the Status column.
	si := s.col[colStatus]
	for _, row := range s.rows {
		if strings.TrimSpace(row[si]) == "" {
			row[si] = string(StatusApplied)
		}
	}

	return s, nil
}

func (s *Store) reindex() {
	s.col = make(map[string]int, len(s.header))
	for i, name := range s.header {
		s.col[strings.TrimSpace(name)] = i
	}
	// Older exports used "Location" for the work location column.
	if _, ok := s.col[colLocation]; !ok {
		if i, ok := s.col["Location"]; ok {
			s.col[colLocation] = i
		}
	}
}

func (s *Store) ensureColumn(name, def string) {
	if _, ok := s.col[name]; ok {
		return
	}
	s.header = append(s.header, name)
	for i, row := range s.rows {
		s.rows[i] = append(row, def)
	}
	s.reindex()
}

// Save writes the full store back to disk. The write goes through a temp
// file and rename so a crash mid-write cannot truncate the store.
func (s *Store) Save() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to write tracking store: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write tracking store header: %w", err)
	}
	for _, row := range s.rows {
		if err := w.Write(row); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to write tracking store row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush tracking store: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close tracking store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace tracking store: %w", err)
	}
	return nil
}

// Path returns the file path this store was opened from.
func (s *Store) Path() string { return s.path }

// Len returns the number of application rows.
func (s *Store) Len() int { return len(s.rows) }

func (s *Store) cell(row int, name string) string {
	i, ok := s.col[name]
	if !ok || row < 0 || row >= len(s.rows) {
		return ""
	}
	return s.rows[row][i]
}

func (s *Store) setCell(row int, name, value string) {
	i, ok := s.col[name]
	if !ok || row < 0 || row >= len(s.rows) {
		return
	}
	s.rows[row][i] = value
}

func (s *Store) application(row int) Application {
	st, ok := ParseStatus(s.cell(row, colStatus))
	if !ok {
		st = StatusApplied
	}
	return Application{
		Row:           row,
		JobID:         s.cell(row, colJobID),
		Title:         s.cell(row, colTitle),
		Company:       s.cell(row, colCompany),
		Location:      s.cell(row, colLocation),
		Status:        st,
		DateApplied:   s.cell(row, colDateApplied),
		InterviewDate: s.cell(row, colInterviewDate),
		Notes:         s.cell(row, colNotes),
	}
}

// Applications returns typed views over every row, in row order.
func (s *Store) Applications() []Application {
	apps := make([]Application, len(s.rows))
	for i := range s.rows {
		apps[i] = s.application(i)
	}
	return apps
}

// Companies returns the unique non-empty company names in the store, in
// first-seen order. These are the canonical matching targets.
func (s *Store) Companies() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range s.rows {
		c := strings.TrimSpace(s.cell(i, colCompany))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// MatchCompany returns all applications for the given company. It tries an
// exact match first, then case-insensitive, then a separator-insensitive
// comparison restricted to companies sharing the name's longest word.
func (s *Store) MatchCompany(name string) []Application {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	var exact []Application
	for i := range s.rows {
		if s.cell(i, colCompany) == name {
			exact = append(exact, s.application(i))
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var folded []Application
	for i := range s.rows {
		if strings.EqualFold(s.cell(i, colCompany), name) {
			folded = append(folded, s.application(i))
		}
	}
	if len(folded) > 0 {
		return folded
	}

	// Last tier: among companies containing the longest word of the name,
	// accept those equal after stripping separators.
	mainWord := longestWord(name)
	if mainWord == "" {
		return nil
	}
	compact := compactName(name)
	var loose []Application
	for i := range s.rows {
		company := s.cell(i, colCompany)
		if !strings.Contains(strings.ToLower(company), mainWord) {
			continue
		}
		if compactName(company) == compact {
			loose = append(loose, s.application(i))
		}
	}
	return loose
}

var separatorRe = regexp.MustCompile(`[\s\-.]`)

func compactName(name string) string {
	return separatorRe.ReplaceAllString(strings.ToLower(name), "")
}

func longestWord(name string) string {
	best := ""
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

// CountByCompany returns the number of rows whose company matches exactly.
func (s *Store) CountByCompany(name string) int {
	n := 0
	for i := range s.rows {
		if s.cell(i, colCompany) == name {
			n++
		}
	}
	return n
}

// FindJobID locates a row by its Job ID.
func (s *Store) FindJobID(id string) (Application, bool) {
	for i := range s.rows {
		if s.cell(i, colJobID) == id {
			return s.application(i), true
		}
	}
	return Application{}, false
}

// SetStatus overwrites the status of one row.
func (s *Store) SetStatus(row int, st Status) {
	s.setCell(row, colStatus, string(st))
}

// SetInterviewDate overwrites the interview date of one row.
func (s *Store) SetInterviewDate(row int, date string) {
	s.setCell(row, colInterviewDate, date)
}

// AppendNote appends a line to the row's notes. Notes only ever grow.
func (s *Store) AppendNote(row int, note string) {
	cur := s.cell(row, colNotes)
	if strings.TrimSpace(cur) == "" {
		s.setCell(row, colNotes, note)
		return
	}
	s.setCell(row, colNotes, cur+"\n"+note)
}

// AuditNote formats the timestamped transition note appended on every status
// update.
func AuditNote(now time.Time, from, to Status, subject string, confidence float64, companyTotal, updated int) string {
	snippet := subject
	if r := []rune(snippet); len(r) > 50 {
		snippet = string(r[:50]) + "..."
	}
	note := fmt.Sprintf("[%s] Status updated: '%s' -> '%s' | Email: \"%s\" | Confidence: %.2f",
		now.Format("2006-01-02 15:04"), from, to, snippet, confidence)
	if companyTotal > updated {
		note += fmt.Sprintf(" | Note: %d total applications to this company, updated %d", companyTotal, updated)
	}
	return note
}

// StatusCounts tallies applications per status.
func (s *Store) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for i := range s.rows {
		counts[s.application(i).Status]++
	}
	return counts
}

// Stats summarizes the store for the stats command and the web API.
type Stats struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	ResponseRate float64        `json:"response_rate"`
}

// ComputeStats derives outcome statistics. Response rate counts applications
// that progressed to an interview or beyond.
func (s *Store) ComputeStats() Stats {
	counts := s.StatusCounts()
	responded := counts[StatusInterviewScheduled] + counts[StatusInterviewed] +
		counts[StatusOffered] + counts[StatusAccepted] + counts[StatusDeclined]
	stats := Stats{Total: s.Len(), ByStatus: counts}
	if stats.Total > 0 {
		stats.ResponseRate = float64(responded) / float64(stats.Total) * 100
	}
	return stats
}

// DefaultStorePath is where the tracking CSV lives unless configured
// otherwise.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "applications.csv"
	}
	return filepath.Join(home, ".jobtrail", "applications.csv")
}
