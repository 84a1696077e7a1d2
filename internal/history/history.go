package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome classifies what a scan pass decided for one email.
type Outcome string

const (
	OutcomeUpdated      Outcome = "updated"       // status transition applied
	OutcomeUnchanged    Outcome = "unchanged"     // record already at target status
	OutcomeSkipped      Outcome = "skipped"       // gated out, reasons recorded
	OutcomeNotJob       Outcome = "not_job"       // classified as not job-related
	OutcomeOracleFailed Outcome = "oracle_failed" // classification unavailable or malformed
)

// Pass is one reconciliation run over one account.
type Pass struct {
	ID             string
	Account        string
	StartedAt      time.Time
	FinishedAt     time.Time
	Messages       int
	JobRelated     int
	Updates        int
	OracleFailures int
	DryRun         bool
	Error          string
}

// Decision is the audit row for one email inside a pass.
type Decision struct {
	ID         int64
	PassID     string
	Company    string
	Subject    string
	Outcome    Outcome
	Reasons    string
	FromStatus string
	ToStatus   string
	Confidence float64
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS scan_passes (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		messages INTEGER DEFAULT 0,
		job_related INTEGER DEFAULT 0,
		updates INTEGER DEFAULT 0,
		oracle_failures INTEGER DEFAULT 0,
		dry_run INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sp_account ON scan_passes(account);
	CREATE INDEX IF NOT EXISTS idx_sp_started_at ON scan_passes(started_at);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pass_id TEXT NOT NULL,
		company TEXT,
		subject TEXT,
		outcome TEXT NOT NULL,
		reasons TEXT,
		from_status TEXT,
		to_status TEXT,
		confidence REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_d_pass_id ON decisions(pass_id);
	CREATE INDEX IF NOT EXISTS idx_d_outcome ON decisions(outcome);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// BeginPass records the start of a reconciliation run for one account and
// assigns its ID.
func (s *Store) BeginPass(account string, dryRun bool) (*Pass, error) {
	p := &Pass{
		ID:        uuid.NewString(),
		Account:   account,
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}

	dry := 0
	if dryRun {
		dry = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO scan_passes (id, account, started_at, dry_run) VALUES (?, ?, ?, ?)`,
		p.ID, p.Account, p.StartedAt, dry,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scan pass: %w", err)
	}
	return p, nil
}

// FinishPass writes the pass counters and completion time back.
func (s *Store) FinishPass(p *Pass) error {
	p.FinishedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE scan_passes SET finished_at = ?, messages = ?, job_related = ?,
			updates = ?, oracle_failures = ?, error = ? WHERE id = ?`,
		p.FinishedAt, p.Messages, p.JobRelated, p.Updates, p.OracleFailures, p.Error, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish scan pass: %w", err)
	}
	return nil
}

// AddDecision stores the audit row for one processed email.
func (s *Store) AddDecision(d *Decision) error {
	result, err := s.db.Exec(
		`INSERT INTO decisions (pass_id, company, subject, outcome, reasons,
			from_status, to_status, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.PassID, d.Company, d.Subject, d.Outcome, d.Reasons,
		d.FromStatus, d.ToStatus, d.Confidence, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

// RecentPasses returns the latest scan passes, newest first.
func (s *Store) RecentPasses(limit int) ([]Pass, error) {
	rows, err := s.db.Query(
		`SELECT id, account, started_at, finished_at, messages, job_related,
			updates, oracle_failures, dry_run, error
		FROM scan_passes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan passes: %w", err)
	}
	defer rows.Close()

	var passes []Pass
	for rows.Next() {
		var p Pass
		var finished sql.NullTime
		var errStr sql.NullString
		var dry int

		if err := rows.Scan(&p.ID, &p.Account, &p.StartedAt, &finished,
			&p.Messages, &p.JobRelated, &p.Updates, &p.OracleFailures, &dry, &errStr); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		p.FinishedAt = finished.Time
		p.Error = errStr.String
		p.DryRun = dry == 1
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// RecentDecisions returns the latest decisions, newest first. An empty passID
// returns decisions across all passes.
func (s *Store) RecentDecisions(passID string, limit int) ([]Decision, error) {
	var rows *sql.Rows
	var err error
	if passID != "" {
		rows, err = s.db.Query(
			`SELECT id, pass_id, company, subject, outcome, reasons,
				from_status, to_status, confidence, created_at
			FROM decisions WHERE pass_id = ? ORDER BY id DESC LIMIT ?`, passID, limit)
	} else {
		rows, err = s.db.Query(
			`SELECT id, pass_id, company, subject, outcome, reasons,
				from_status, to_status, confidence, created_at
			FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var company, subject, reasons, fromStatus, toStatus sql.NullString
		var confidence sql.NullFloat64
		var createdAt sql.NullTime

		if err := rows.Scan(&d.ID, &d.PassID, &company, &subject, &d.Outcome,
			&reasons, &fromStatus, &toStatus, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Company = company.String
		d.Subject = subject.String
		d.Reasons = reasons.String
		d.FromStatus = fromStatus.String
		d.ToStatus = toStatus.String
		d.Confidence = confidence.Float64
		d.CreatedAt = createdAt.Time
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// OutcomeStats returns decision counts grouped by outcome.
func (s *Store) OutcomeStats() (map[Outcome]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM decisions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome stat: %w", err)
		}
		stats[Outcome(outcome)] = count
	}
	return stats, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jobtrail_history.db"
	}
	return filepath.Join(home, ".jobtrail", "history.db")
}
