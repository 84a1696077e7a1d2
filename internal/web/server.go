package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jobtrail/jobtrail/internal/config"
	"github.com/jobtrail/jobtrail/internal/history"
	"github.com/jobtrail/jobtrail/internal/scan"
	"github.com/jobtrail/jobtrail/internal/tracker"
)

// Scanner triggers a reconciliation run; satisfied by *scan.Reconciler.
type Scanner interface {
	Run(ctx context.Context, opts scan.Options) (scan.Summary, error)
}

// Server exposes a read-mostly JSON API over the tracking store on localhost.
type Server struct {
	config     *config.Config
	hist       *history.Store // may be nil
	scanner    Scanner        // may be nil
	httpServer *http.Server
	port       int

	mu       sync.Mutex
	scanning bool
}

func NewServer(port int, cfg *config.Config, hist *history.Store, scanner Scanner) *Server {
	return &Server{
		config:  cfg,
		hist:    hist,
		scanner: scanner,
		port:    port,
	}
}

func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	fmt.Printf("Serving API at http://localhost:%d\n", s.port)
	fmt.Println("Press Ctrl+C to stop")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/applications", s.handleApplications)
		r.Get("/stats", s.handleStats)
		r.Get("/scans", s.handleScans)
		r.Get("/decisions", s.handleDecisions)
		r.Post("/scan", s.handleScan)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	store, err := tracker.Open(s.config.Store.CSVPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type appView struct {
		JobID         string `json:"job_id"`
		Title         string `json:"title"`
		Company       string `json:"company"`
		Location      string `json:"location"`
		Status        string `json:"status"`
		DateApplied   string `json:"date_applied"`
		InterviewDate string `json:"interview_date,omitempty"`
	}

	apps := store.Applications()
	out := make([]appView, 0, len(apps))

	statusFilter := r.URL.Query().Get("status")
	companyFilter := r.URL.Query().Get("company")
	for _, a := range apps {
		if statusFilter != "" && string(a.Status) != statusFilter {
			continue
		}
		if companyFilter != "" && a.Company != companyFilter {
			continue
		}
		out = append(out, appView{
			JobID:         a.JobID,
			Title:         a.Title,
			Company:       a.Company,
			Location:      a.Location,
			Status:        string(a.Status),
			DateApplied:   a.DateApplied,
			InterviewDate: a.InterviewDate,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	store, err := tracker.Open(s.config.Store.CSVPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.ComputeStats())
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not available")
		return
	}

	passes, err := s.hist.RecentPasses(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type passView struct {
		ID             string    `json:"id"`
		Account        string    `json:"account"`
		StartedAt      time.Time `json:"started_at"`
		FinishedAt     time.Time `json:"finished_at"`
		Messages       int       `json:"messages"`
		JobRelated     int       `json:"job_related"`
		Updates        int       `json:"updates"`
		OracleFailures int       `json:"oracle_failures"`
		DryRun         bool      `json:"dry_run,omitempty"`
		Error          string    `json:"error,omitempty"`
	}

	out := make([]passView, 0, len(passes))
	for _, p := range passes {
		out = append(out, passView{
			ID:             p.ID,
			Account:        p.Account,
			StartedAt:      p.StartedAt,
			FinishedAt:     p.FinishedAt,
			Messages:       p.Messages,
			JobRelated:     p.JobRelated,
			Updates:        p.Updates,
			OracleFailures: p.OracleFailures,
			DryRun:         p.DryRun,
			Error:          p.Error,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not available")
		return
	}

	decisions, err := s.hist.RecentDecisions(r.URL.Query().Get("pass"), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type decisionView struct {
		PassID     string  `json:"pass_id"`
		Company    string  `json:"company,omitempty"`
		Subject    string  `json:"subject"`
		Outcome    string  `json:"outcome"`
		Reasons    string  `json:"reasons,omitempty"`
		FromStatus string  `json:"from_status,omitempty"`
		ToStatus   string  `json:"to_status,omitempty"`
		Confidence float64 `json:"confidence,omitempty"`
	}

	out := make([]decisionView, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, decisionView{
			PassID:     d.PassID,
			Company:    d.Company,
			Subject:    d.Subject,
			Outcome:    string(d.Outcome),
			Reasons:    d.Reasons,
			FromStatus: d.FromStatus,
			ToStatus:   d.ToStatus,
			Confidence: d.Confidence,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner not configured")
		return
	}

	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "scan already running")
		return
	}
	s.scanning = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.scanning = false
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		summary, err := s.scanner.Run(ctx, scan.Options{Days: s.config.Scan.Days, DryRun: s.config.Scan.DryRun})
		if err != nil {
			log.Printf("Scan failed: %v", err)
			return
		}
		log.Printf("Scan finished: %d updates across %d accounts", summary.TotalUpdates, len(summary.Accounts))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
