package scan

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jobtrail/jobtrail/internal/classify"
	"github.com/jobtrail/jobtrail/internal/config"
	"github.com/jobtrail/jobtrail/internal/history"
	"github.com/jobtrail/jobtrail/internal/inbox"
	"github.com/jobtrail/jobtrail/internal/match"
	"github.com/jobtrail/jobtrail/internal/tracker"
)

// MailSource is one scannable mailbox. *inbox.Mailbox is the production
// implementation.
type MailSource interface {
	Connect(ctx context.Context) error
	Disconnect() error
	FetchSince(ctx context.Context, days int) ([]inbox.Message, error)
	Account() string
}

// Options controls one reconciliation run.
type Options struct {
	Days   int
	DryRun bool
}

// AccountSummary aggregates one account's pass.
type AccountSummary struct {
	Account        string
	Messages       int
	JobRelated     int
	Updates        int
	OracleFailures int
	Err            error
}

// Summary aggregates a whole run.
type Summary struct {
	Accounts     []AccountSummary
	TotalUpdates int
}

// Digest renders the run as the plain-text body of the post-scan email.
func (s Summary) Digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan finished: %d status update(s)\n\n", s.TotalUpdates)
	for _, a := range s.Accounts {
		fmt.Fprintf(&b, "%s: %d messages, %d job-related, %d updates",
			a.Account, a.Messages, a.JobRelated, a.Updates)
		if a.OracleFailures > 0 {
			fmt.Fprintf(&b, ", %d classification failures", a.OracleFailures)
		}
		if a.Err != nil {
			fmt.Fprintf(&b, " (error: %v)", a.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SourcesFromConfig builds the production mail sources for every configured
// account.
func SourcesFromConfig(accounts []config.Account) []MailSource {
	out := make([]MailSource, len(accounts))
	for i, a := range accounts {
		out[i] = inbox.NewMailbox(a)
	}
	return out
}

// Reconciler drives the per-message pipeline across every configured
// account: normalize, classify, correct, match, select, write.
type Reconciler struct {
	storePath string
	oracle    classify.Oracle
	sources   []MailSource
	hist      *history.Store // nil disables the audit trail
	now       func() time.Time

	mu sync.Mutex // serializes Run; sources and the store are single-writer
}

func New(storePath string, oracle classify.Oracle, sources []MailSource, hist *history.Store) *Reconciler {
	return &Reconciler{
		storePath: storePath,
		oracle:    oracle,
		sources:   sources,
		hist:      hist,
		now:       time.Now,
	}
}

// Run scans every account in turn. One account failing does not abort the
// others; per-account errors land in the summary. Overlapping calls serialize:
// the mail sessions and the store tolerate only one pass at a time.
func (r *Reconciler) Run(ctx context.Context, opts Options) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summary Summary
	for _, src := range r.sources {
		acct := r.runAccount(ctx, src, opts)
		summary.Accounts = append(summary.Accounts, acct)
		summary.TotalUpdates += acct.Updates

		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}
	return summary, nil
}

func (r *Reconciler) runAccount(ctx context.Context, src MailSource, opts Options) AccountSummary {
	acct := AccountSummary{Account: src.Account()}

	log.Printf("Scanning emails for %s...", acct.Account)

	var pass *history.Pass
	if r.hist != nil {
		p, err := r.hist.BeginPass(acct.Account, opts.DryRun)
		if err != nil {
			log.Printf("Warning: failed to record scan pass: %v", err)
		} else {
			pass = p
		}
	}
	defer func() {
		if pass == nil {
			return
		}
		pass.Messages = acct.Messages
		pass.JobRelated = acct.JobRelated
		pass.Updates = acct.Updates
		pass.OracleFailures = acct.OracleFailures
		if acct.Err != nil {
			pass.Error = acct.Err.Error()
		}
		if err := r.hist.FinishPass(pass); err != nil {
			log.Printf("Warning: failed to finish scan pass: %v", err)
		}
	}()

	if err := src.Connect(ctx); err != nil {
		acct.Err = err
		return acct
	}
	defer src.Disconnect()

	messages, err := r.fetchWithReconnect(ctx, src, opts.Days)
	if err != nil {
		acct.Err = err
		return acct
	}
	acct.Messages = len(messages)

	store, err := tracker.Open(r.storePath)
	if err != nil {
		acct.Err = err
		return acct
	}
	log.Printf("Loaded %d applications from %s", store.Len(), store.Path())

	for _, msg := range messages {
		if ctx.Err() != nil {
			acct.Err = ctx.Err()
			break
		}
		r.processMessage(ctx, store, msg, pass, &acct)
	}

	// The store is written back after each account so one account's updates
	// survive a later account failing.
	if acct.Updates > 0 && !opts.DryRun {
		if err := store.Save(); err != nil {
			acct.Err = fmt.Errorf("failed to save %d updates: %w", acct.Updates, err)
			return acct
		}
		log.Printf("Saved %d status updates for %s", acct.Updates, acct.Account)
	}

	return acct
}

// fetchWithReconnect retries the fetch once through a fresh connection. IMAP
// servers drop long-lived sessions mid-scan often enough to warrant it.
func (r *Reconciler) fetchWithReconnect(ctx context.Context, src MailSource, days int) ([]inbox.Message, error) {
	messages, err := src.FetchSince(ctx, days)
	if err == nil {
		return messages, nil
	}

	log.Printf("Fetch failed (%v), reconnecting...", err)
	src.Disconnect()
	if cerr := src.Connect(ctx); cerr != nil {
		return nil, fmt.Errorf("reconnect failed: %w", cerr)
	}
	messages, err = src.FetchSince(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("fetch failed after reconnect: %w", err)
	}
	return messages, nil
}

func (r *Reconciler) processMessage(ctx context.Context, store *tracker.Store, msg inbox.Message, pass *history.Pass, acct *AccountSummary) {
	subjectLower := inbox.CleanText(msg.Subject)
	bodyLower := msg.Text()

	j, err := r.oracle.Classify(ctx, classify.Request{
		Sender:         msg.SenderName(),
		Subject:        msg.Subject,
		Body:           bodyLower,
		KnownCompanies: store.Companies(),
	})
	if err != nil {
		acct.OracleFailures++
		log.Printf("Classification failed for %q: %v", msg.Subject, err)
		r.recordDecision(pass, &history.Decision{
			Subject: msg.Subject,
			Outcome: history.OutcomeOracleFailed,
			Reasons: err.Error(),
		})
		return
	}

	j = classify.Correct(j, subjectLower, bodyLower)

	if !j.JobRelated {
		r.recordDecision(pass, &history.Decision{
			Subject:    msg.Subject,
			Outcome:    history.OutcomeNotJob,
			Confidence: j.Confidence,
		})
		return
	}

	// The model sometimes says job-related while its own reasoning says the
	// opposite. Trust the reasoning and skip.
	if strings.Contains(strings.ToLower(j.Reasoning), "unrelated to any job application") {
		log.Printf("Inconsistent classification for %q, skipping", msg.Subject)
		r.recordDecision(pass, &history.Decision{
			Subject:    msg.Subject,
			Outcome:    history.OutcomeSkipped,
			Reasons:    "reasoning contradicts job-related flag",
			Confidence: j.Confidence,
		})
		return
	}

	acct.JobRelated++

	extracted := j.CompanyExtracted
	if extracted == "" {
		extracted = inbox.FallbackCompany(msg.Subject, msg.FromName, msg.From)
	}

	companyMatch := j.CompanyMatch
	if companyMatch == "" && extracted != "" {
		if m, score := match.Company(extracted, store.Companies()); m != "" {
			log.Printf("Fuzzy matched %q to %q (score %.2f)", extracted, m, score)
			companyMatch = m
		}
	}

	candidates := store.MatchCompany(companyMatch)
	emailText := subjectLower + " " + bodyLower

	dec := tracker.Select(companyMatch, j.Status, j.Confidence, emailText, candidates)
	if !dec.Update() {
		log.Printf("No update for %q: %s", msg.Subject, strings.Join(dec.Reasons, ", "))
		r.recordDecision(pass, &history.Decision{
			Company:    companyMatch,
			Subject:    msg.Subject,
			Outcome:    history.OutcomeSkipped,
			Reasons:    strings.Join(dec.Reasons, ", "),
			ToStatus:   j.Status,
			Confidence: j.Confidence,
		})
		return
	}

	companyTotal := store.CountByCompany(companyMatch)
	for _, app := range dec.Selected {
		if app.Status == dec.Status {
			log.Printf("No change needed for %s / %s (already %s)", app.Company, app.Title, app.Status)
			r.recordDecision(pass, &history.Decision{
				Company:    companyMatch,
				Subject:    msg.Subject,
				Outcome:    history.OutcomeUnchanged,
				FromStatus: string(app.Status),
				ToStatus:   string(dec.Status),
				Confidence: j.Confidence,
			})
			continue
		}

		store.SetStatus(app.Row, dec.Status)
		if j.InterviewDate != "" {
			store.SetInterviewDate(app.Row, j.InterviewDate)
		}
		// The audit note carries the company total when the email updated
		// only a subset of that company's applications.
		note := tracker.AuditNote(r.now(), app.Status, dec.Status, msg.Subject, j.Confidence, companyTotal, len(dec.Selected))
		store.AppendNote(app.Row, note)

		log.Printf("Updated %s / %s: %s -> %s", app.Company, app.Title, app.Status, dec.Status)
		acct.Updates++
		r.recordDecision(pass, &history.Decision{
			Company:    companyMatch,
			Subject:    msg.Subject,
			Outcome:    history.OutcomeUpdated,
			FromStatus: string(app.Status),
			ToStatus:   string(dec.Status),
			Confidence: j.Confidence,
		})
	}
}

func (r *Reconciler) recordDecision(pass *history.Pass, d *history.Decision) {
	if r.hist == nil || pass == nil {
		return
	}
	d.PassID = pass.ID
	if err := r.hist.AddDecision(d); err != nil {
		log.Printf("Warning: failed to record decision: %v", err)
	}
}
