package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jobtrail/jobtrail/internal/classify"
	"github.com/jobtrail/jobtrail/internal/config"
	"github.com/jobtrail/jobtrail/internal/history"
	"github.com/jobtrail/jobtrail/internal/notify"
	"github.com/jobtrail/jobtrail/internal/scan"
	"github.com/jobtrail/jobtrail/internal/tracker"
	"github.com/jobtrail/jobtrail/internal/web"
)

var cfgFile string

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	// Optional .env for API keys during development
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "jobtrail",
		Short: "JobTrail - Keep your job application tracker in sync with your inbox",
		Long: `JobTrail scans your mail accounts for responses to job applications,
classifies them, and reconciles your tracking spreadsheet: rejections,
interview invitations, assessments and offers land in the Status column
with an audit note, without you re-reading every recruiter email.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jobtrail/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(setStatusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your mail accounts and tracking store location.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func scanCmd() *cobra.Command {
	var days int
	var dryRun bool
	var every string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan mail accounts and reconcile application statuses",
		Long: `Fetch recent emails from every configured account, classify each one,
and update the tracking store where the evidence is strong enough.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(days, dryRun, every)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "trailing window in days (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing the store")
	cmd.Flags().StringVar(&every, "every", "", "cron schedule to scan repeatedly (e.g. \"0 */6 * * *\")")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show application statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func listCmd() *cobra.Command {
	var status string
	var company string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(status, company)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show applications with this status")
	cmd.Flags().StringVar(&company, "company", "", "only show applications to this company")

	return cmd
}

func setStatusCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "set-status <job-id> <status>",
		Short: "Manually set the status of one application",
		Long: `Set an application's status by Job ID. Valid statuses:
` + strings.Join(statusNames(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(args[0], args[1], note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "extra note to record with the update")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	var decisions bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit, decisions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of rows to show")
	cmd.Flags().BoolVar(&decisions, "decisions", false, "show per-email decisions instead of passes")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8337, "port to listen on (localhost only)")

	return cmd
}

func statusNames() []string {
	all := tracker.AllStatuses()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s)
	}
	return names
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("JobTrail Configuration Setup")
	fmt.Println("============================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("Tracking store")
	fmt.Println()
	csvPath := prompt(reader, fmt.Sprintf("Path to tracking CSV [%s]: ", tracker.DefaultStorePath()))
	if csvPath == "" {
		csvPath = tracker.DefaultStorePath()
	}
	cfg.Store.CSVPath = csvPath

	fmt.Println()
	fmt.Println("Mail accounts (IMAP)")
	fmt.Println("  (For Gmail, create an app password: https://support.google.com/accounts/answer/185833)")
	fmt.Println()

	for {
		var a config.Account
		a.Email = prompt(reader, "Email address: ")
		a.Password = prompt(reader, "App password: ")
		a.Server = prompt(reader, "IMAP server [imap.gmail.com]: ")
		if a.Server == "" {
			a.Server = "imap.gmail.com"
		}
		portStr := prompt(reader, "IMAP port [993]: ")
		a.Port = 993
		if portStr != "" {
			p, err := strconv.Atoi(portStr)
			if err != nil {
				fmt.Println("Invalid port, using 993")
			} else {
				a.Port = p
			}
		}
		a.Folder = "INBOX"
		cfg.Accounts = append(cfg.Accounts, a)

		if !strings.EqualFold(prompt(reader, "Add another account? (y/N): "), "y") {
			break
		}
		fmt.Println()
	}

	fmt.Println()
	fmt.Println("Classification")
	fmt.Println()
	cfg.Oracle.APIKey = prompt(reader, "OpenAI API key (blank to use OPENAI_API_KEY env): ")
	model := prompt(reader, "Model [gpt-4o-mini]: ")
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg.Oracle.Model = model
	cfg.Oracle.TimeoutSec = 45
	cfg.Scan.Days = 3

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'jobtrail scan --dry-run' to preview status updates")
	fmt.Println("  3. Run 'jobtrail scan' to reconcile your tracker")

	return nil
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func buildReconciler(cfg *config.Config) (*scan.Reconciler, *history.Store, error) {
	oracle, err := classify.NewLLMOracle(cfg.Oracle.APIKey, cfg.Oracle.BaseURL,
		cfg.Oracle.Model, time.Duration(cfg.Oracle.TimeoutSec)*time.Second)
	if err != nil {
		return nil, nil, err
	}

	hist, err := history.NewStore(cfg.Store.HistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: scan history disabled: %v\n", err)
		hist = nil
	}

	sources := scan.SourcesFromConfig(cfg.Accounts)
	return scan.New(cfg.Store.CSVPath, oracle, sources, hist), hist, nil
}

func runScan(days int, dryRun bool, every string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if days <= 0 {
		days = cfg.Scan.Days
	}
	if cfg.Scan.DryRun {
		dryRun = true
	}

	r, hist, err := buildReconciler(cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := scan.Options{Days: days, DryRun: dryRun}

	if every == "" {
		return scanOnce(ctx, r, cfg, opts)
	}

	// Scheduled mode: run at startup, then on the cron schedule until
	// interrupted.
	if err := scanOnce(ctx, r, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
	}

	// A pass slower than the schedule must not overlap the next tick.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(every, func() {
		if err := scanOnce(ctx, r, cfg, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid --every schedule %q: %w", every, err)
	}

	c.Start()
	fmt.Printf("Scanning on schedule %q, press Ctrl+C to stop\n", every)
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func scanOnce(ctx context.Context, r *scan.Reconciler, cfg *config.Config, opts scan.Options) error {
	if opts.DryRun {
		fmt.Println("Dry run: no changes will be written")
	}

	summary, err := r.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(summary.Digest())

	if cfg.Notify.Enabled && summary.TotalUpdates > 0 && !opts.DryRun {
		if err := sendDigest(ctx, cfg, summary); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: digest not sent: %v\n", err)
		}
	}
	return nil
}

func sendDigest(ctx context.Context, cfg *config.Config, summary scan.Summary) error {
	if err := cfg.ValidateNotify(); err != nil {
		return err
	}
	sender, err := notify.NewSender(cfg.Notify)
	if err != nil {
		return err
	}

	result := sender.Send(ctx, notify.Message{
		From:    cfg.Notify.From,
		To:      cfg.Notify.To,
		Subject: fmt.Sprintf("JobTrail: %d status update(s)", summary.TotalUpdates),
		Body:    summary.Digest(),
	})
	if !result.Success {
		return result.Error
	}
	fmt.Printf("Digest sent via %s\n", sender.Name())
	return nil
}

func runStats() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := tracker.Open(cfg.Store.CSVPath)
	if err != nil {
		return err
	}

	stats := store.ComputeStats()
	fmt.Printf("Applications: %d\n\n", stats.Total)
	for _, st := range tracker.AllStatuses() {
		if n := stats.ByStatus[st]; n > 0 {
			fmt.Printf("  %-20s %d\n", st, n)
		}
	}
	fmt.Printf("\nResponse rate: %.1f%% (reached interview stage or beyond)\n", stats.ResponseRate)
	return nil
}

func runList(status, company string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := tracker.Open(cfg.Store.CSVPath)
	if err != nil {
		return err
	}

	var filter tracker.Status
	if status != "" {
		st, ok := tracker.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q (valid: %s)", status, strings.Join(statusNames(), ", "))
		}
		filter = st
	}

	fmt.Printf("%-12s %-35s %-25s %-20s %s\n", "JOB ID", "TITLE", "COMPANY", "STATUS", "APPLIED")
	for _, a := range store.Applications() {
		if filter != "" && a.Status != filter {
			continue
		}
		if company != "" && !strings.EqualFold(a.Company, company) {
			continue
		}
		fmt.Printf("%-12s %-35s %-25s %-20s %s\n",
			truncate(a.JobID, 12), truncate(a.Title, 35), truncate(a.Company, 25), a.Status, a.DateApplied)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func runSetStatus(jobID, statusArg, extraNote string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, ok := tracker.ParseStatus(statusArg)
	if !ok {
		return fmt.Errorf("unknown status %q (valid: %s)", statusArg, strings.Join(statusNames(), ", "))
	}

	store, err := tracker.Open(cfg.Store.CSVPath)
	if err != nil {
		return err
	}

	app, found := store.FindJobID(jobID)
	if !found {
		return fmt.Errorf("no application with Job ID %q", jobID)
	}

	if app.Status == st {
		fmt.Printf("%s / %s is already %s\n", app.Company, app.Title, st)
		return nil
	}

	store.SetStatus(app.Row, st)
	note := fmt.Sprintf("[%s] Status updated: '%s' -> '%s' | Manual",
		time.Now().Format("2006-01-02 15:04"), app.Status, st)
	if extraNote != "" {
		note += " | " + extraNote
	}
	store.AppendNote(app.Row, note)

	if err := store.Save(); err != nil {
		return err
	}

	fmt.Printf("Updated %s / %s: %s -> %s\n", app.Company, app.Title, app.Status, st)
	return nil
}

func runHistory(limit int, decisions bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	hist, err := history.NewStore(cfg.Store.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	if decisions {
		return printDecisions(hist, limit)
	}

	passes, err := hist.RecentPasses(limit)
	if err != nil {
		return err
	}
	if len(passes) == 0 {
		fmt.Println("No scan passes recorded yet. Run 'jobtrail scan' first.")
		return nil
	}

	fmt.Printf("%-20s %-30s %8s %8s %8s %s\n", "STARTED", "ACCOUNT", "EMAILS", "RELATED", "UPDATES", "NOTES")
	for _, p := range passes {
		notes := ""
		if p.DryRun {
			notes = "dry-run"
		}
		if p.Error != "" {
			notes = "error: " + p.Error
		}
		fmt.Printf("%-20s %-30s %8d %8d %8d %s\n",
			p.StartedAt.Format("2006-01-02 15:04"), truncate(p.Account, 30),
			p.Messages, p.JobRelated, p.Updates, notes)
	}
	return nil
}

func printDecisions(hist *history.Store, limit int) error {
	decisions, err := hist.RecentDecisions("", limit)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded yet. Run 'jobtrail scan' first.")
		return nil
	}

	fmt.Printf("%-20s %-25s %-40s %-13s %s\n", "WHEN", "COMPANY", "SUBJECT", "OUTCOME", "DETAILS")
	for _, d := range decisions {
		details := d.Reasons
		if d.Outcome == history.OutcomeUpdated {
			details = fmt.Sprintf("%s -> %s (%.2f)", d.FromStatus, d.ToStatus, d.Confidence)
		}
		fmt.Printf("%-20s %-25s %-40s %-13s %s\n",
			d.CreatedAt.Format("2006-01-02 15:04"), truncate(d.Company, 25),
			truncate(d.Subject, 40), d.Outcome, details)
	}
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, hist, err := buildReconciler(cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	server := web.NewServer(port, cfg, hist, r)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}
