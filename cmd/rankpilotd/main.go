// Entry point for the rankpilot HTTP service: chi router, bearer auth,
// SQLite-backed autopilot with a periodic cadence trigger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rankpilothq/rankpilot/autopilot"
	"github.com/rankpilothq/rankpilot/dbopen"
	"github.com/rankpilothq/rankpilot/shield"
	_ "modernc.org/sqlite"
)

func main() {
	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		slog.Error("AUTH_SECRET is required")
		os.Exit(1)
	}
	cronSecret := env("CRON_SECRET", authSecret)
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Config: YAML file if given, env overrides on top.
	cfg := autopilot.DefaultConfig()
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := autopilot.LoadConfig(path)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Listen = env("LISTEN", cfg.Listen)
	cfg.DBPath = env("DB_PATH", cfg.DBPath)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(autopilot.Schema))
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Ingest clients. Each is optional: the matching ingest endpoint
	// returns an error until its client is configured.
	var opts []autopilot.ServiceOption
	if token := os.Getenv("GSC_TOKEN"); token != "" {
		opts = append(opts, autopilot.WithSearchConsole(
			autopilot.NewSearchConsoleClient(token, cfg.SearchConsole)))
	}
	if cfg.Research.BaseURL != "" {
		opts = append(opts, autopilot.WithResearch(
			autopilot.NewResearchClient(cfg.Research)))
	}

	svc, err := autopilot.New(db, cfg, logger, opts...)
	if err != nil {
		slog.Error("autopilot service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Start cadence trigger loop.
	svc.Start(ctx)

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Cron endpoints: trigger and ingest run under the cron secret.
	r.Group(func(r chi.Router) {
		r.Use(shield.RequireBearer(cronSecret))

		r.Post("/api/trigger", func(w http.ResponseWriter, r *http.Request) {
			result, err := svc.RunTrigger(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, result)
		})

		r.Post("/api/sites/{siteID}/ingest/search-console", func(w http.ResponseWriter, r *http.Request) {
			// Body is optional; an absent lookback falls back to config.
			var req struct {
				LookbackDays int `json:"lookback_days"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, 400, err)
				return
			}
			summary, err := svc.IngestSearchConsole(r.Context(), chi.URLParam(r, "siteID"), req.LookbackDays)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, summary)
		})

		r.Post("/api/sites/{siteID}/ingest/research", func(w http.ResponseWriter, r *http.Request) {
			// Body is optional; with neither seed terms nor a seed URL the
			// seeds come from the site's homepage.
			var req struct {
				SeedTerms []string `json:"seed_terms"`
				SeedURL   string   `json:"seed_url"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, 400, err)
				return
			}
			summary, err := svc.IngestResearch(r.Context(), chi.URLParam(r, "siteID"), req.SeedTerms, req.SeedURL)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, summary)
		})
	})

	// API endpoints.
	r.Group(func(r chi.Router) {
		r.Use(shield.RequireBearer(authSecret))

		r.Post("/api/sites", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				OrgID  string `json:"org_id"`
				Name   string `json:"name"`
				Domain string `json:"domain"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			site, err := svc.CreateSite(r.Context(), req.OrgID, req.Name, req.Domain)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			writeJSON(w, 201, site)
		})

		r.Get("/api/sites", func(w http.ResponseWriter, r *http.Request) {
			sites, err := svc.ListSites(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if sites == nil {
				sites = []*autopilot.Site{}
			}
			writeJSON(w, 200, sites)
		})

		r.Get("/api/sites/{siteID}", func(w http.ResponseWriter, r *http.Request) {
			site, err := svc.GetSite(r.Context(), chi.URLParam(r, "siteID"))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, site)
		})

		r.Patch("/api/sites/{siteID}/autopilot", func(w http.ResponseWriter, r *http.Request) {
			var req autopilot.AutopilotSettings
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			site, err := svc.ConfigureAutopilot(r.Context(), chi.URLParam(r, "siteID"), req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, site)
		})

		r.Get("/api/sites/{siteID}/keywords", func(w http.ResponseWriter, r *http.Request) {
			filter := autopilot.KeywordFilter{
				Status:      r.URL.Query().Get("status"),
				Opportunity: r.URL.Query().Get("opportunity"),
				Limit:       queryInt(r, "limit", 100),
			}
			keywords, err := svc.ListKeywords(r.Context(), chi.URLParam(r, "siteID"), filter)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if keywords == nil {
				keywords = []*autopilot.Keyword{}
			}
			writeJSON(w, 200, keywords)
		})

		r.Get("/api/sites/{siteID}/articles", func(w http.ResponseWriter, r *http.Request) {
			articles, err := svc.ListArticles(r.Context(), chi.URLParam(r, "siteID"))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if articles == nil {
				articles = []*autopilot.Article{}
			}
			writeJSON(w, 200, articles)
		})

		// Generation callback: records the article for the running cycle.
		r.Post("/api/sites/{siteID}/articles", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				PrimaryKeyword string `json:"primary_keyword"`
				Title          string `json:"title"`
				Slug           string `json:"slug"`
				Category       string `json:"category"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			article, err := svc.CompleteArticle(r.Context(), chi.URLParam(r, "siteID"), &autopilot.Article{
				PrimaryKeyword: req.PrimaryKeyword,
				Title:          req.Title,
				Slug:           req.Slug,
				Category:       req.Category,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 201, article)
		})

		r.Post("/api/sites/{siteID}/pipeline/clear", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.FinishPipeline(r.Context(), chi.URLParam(r, "siteID")); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "idle"})
		})

		r.Post("/api/sites/{siteID}/calendar", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Dates []string `json:"dates"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			created, err := svc.ScheduleRuns(r.Context(), chi.URLParam(r, "siteID"), req.Dates)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 201, map[string]int{"created": created})
		})

		r.Get("/api/sites/{siteID}/calendar", func(w http.ResponseWriter, r *http.Request) {
			month := r.URL.Query().Get("month")
			if month == "" {
				month = time.Now().UTC().Format("2006-01")
			}
			runs, err := svc.Calendar(r.Context(), chi.URLParam(r, "siteID"), month)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if runs == nil {
				runs = []*autopilot.ScheduledRun{}
			}
			writeJSON(w, 200, runs)
		})

		r.Delete("/api/calendar/{runID}", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.CancelScheduledRun(r.Context(), chi.URLParam(r, "runID")); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted"})
		})
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeServiceError maps autopilot sentinel errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, autopilot.ErrSiteNotFound):
		writeError(w, 404, err)
	case errors.Is(err, autopilot.ErrInvalidCadence), errors.Is(err, autopilot.ErrInvalidDate):
		writeError(w, 400, err)
	case errors.Is(err, autopilot.ErrPipelineBusy):
		writeError(w, 409, err)
	default:
		writeError(w, 500, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
