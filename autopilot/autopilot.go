package autopilot

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/rankpilothq/rankpilot/autopilot/internal/research"
	"github.com/rankpilothq/rankpilot/autopilot/internal/searchconsole"
	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
	"github.com/rankpilothq/rankpilot/idgen"
	"github.com/rankpilothq/rankpilot/webguard"
)

// SearchConsoleClient abstracts the search-console query endpoint for
// testability.
type SearchConsoleClient interface {
	Query(ctx context.Context, property string, lookbackDays int) ([]searchconsole.Row, error)
}

// ResearchClient abstracts the keyword-ideas provider.
type ResearchClient interface {
	Ideas(ctx context.Context, seeds []string) ([]research.Idea, error)
}

// SeedFetcher extracts research seed phrases from a site page.
type SeedFetcher func(ctx context.Context, pageURL string) ([]string, error)

// Service is the main autopilot orchestrator.
type Service struct {
	store      *store.Store
	search     SearchConsoleClient
	research   ResearchClient
	fetchSeeds SeedFetcher
	logger     *slog.Logger
	config     *Config
	newID      func() string
	now        func() time.Time
}

// New creates an autopilot Service on an already-opened database with the
// schema applied.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		store:  store.NewStore(db),
		logger: logger,
		config: cfg,
		newID:  idgen.New,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithSearchConsole sets the search-console client used by ingest.
func WithSearchConsole(c SearchConsoleClient) ServiceOption {
	return func(svc *Service) { svc.search = c }
}

// WithResearch sets the keyword-ideas client and the seed fetcher used by
// research ingest.
func WithResearch(c ResearchClient, seeds SeedFetcher) ServiceOption {
	return func(svc *Service) {
		svc.research = c
		svc.fetchSeeds = seeds
	}
}

// WithClock overrides the time source. Use in tests to pin cadence math.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// WithIDGenerator overrides ID generation. Use in tests for stable IDs.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(svc *Service) { svc.newID = gen }
}

// Schema is the autopilot DDL, exported so callers can open their
// database with the schema pre-applied.
const Schema = store.Schema

// ApplySchema applies the autopilot schema to a database. Exported for
// migration scripts.
func ApplySchema(db *sql.DB) error {
	return store.ApplySchema(db)
}

// NewSearchConsoleClient builds the production search-console client from
// configuration and a bearer token.
func NewSearchConsoleClient(token string, cfg SearchConsoleConfig) SearchConsoleClient {
	opts := []searchconsole.Option{searchconsole.WithRowLimit(cfg.RowLimit)}
	if cfg.BaseURL != "" {
		opts = append(opts, searchconsole.WithBaseURL(cfg.BaseURL))
	}
	return searchconsole.New(searchconsole.StaticToken(token), opts...)
}

// NewResearchClient builds the production keyword-ideas client and its
// seed fetcher from configuration. Seed pages are SSRF-checked before
// fetching; the page URL is derived from a tenant-supplied domain.
func NewResearchClient(cfg ResearchConfig) (ResearchClient, SeedFetcher) {
	rc := research.New(cfg.BaseURL, cfg.APIKey, research.WithLimit(cfg.Limit))
	pages := &http.Client{Timeout: 30 * time.Second}
	seeds := func(ctx context.Context, pageURL string) ([]string, error) {
		if err := webguard.ValidateURL(pageURL); err != nil {
			return nil, err
		}
		return research.FetchSeeds(ctx, pages, pageURL)
	}
	return rc, seeds
}

// Start launches the periodic cadence trigger. Non-blocking; the loop
// stops when ctx is cancelled.
func (svc *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(svc.config.Trigger.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := svc.RunTrigger(ctx); err != nil {
					svc.logger.Error("trigger failed", "error", err)
				}
			}
		}
	}()
	svc.logger.Info("autopilot: started", "interval", svc.config.Trigger.Interval)
}

// Close shuts down the service.
func (svc *Service) Close() error {
	svc.logger.Info("autopilot: closed")
	return nil
}
