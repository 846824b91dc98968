package autopilot

import (
	"context"
	"fmt"

	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
	"github.com/rankpilothq/rankpilot/webguard"
)

// AutopilotSettings is the user-facing autopilot configuration for a site.
// Out-of-range effort and volume values are clamped, not rejected.
type AutopilotSettings struct {
	Enabled        bool   `json:"enabled"`
	Cadence        string `json:"cadence"`
	EffortLevel    int    `json:"effort_level"`     // 1..3
	ArticlesPerRun int    `json:"articles_per_run"` // 1..5
}

// CreateSite registers a new site. Autopilot starts disabled.
func (svc *Service) CreateSite(ctx context.Context, orgID, name, domain string) (*Site, error) {
	if err := webguard.ValidateDomain(domain); err != nil {
		return nil, err
	}
	site := &Site{
		ID:     svc.newID(),
		OrgID:  orgID,
		Name:   name,
		Domain: domain,
	}
	if err := svc.store.InsertSite(ctx, site); err != nil {
		return nil, err
	}
	svc.logger.Info("site created", "site_id", site.ID, "domain", domain)
	return site, nil
}

// GetSite returns a site by ID.
func (svc *Service) GetSite(ctx context.Context, siteID string) (*Site, error) {
	site, err := svc.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
	}
	return site, nil
}

// ListSites returns all sites.
func (svc *Service) ListSites(ctx context.Context) ([]*Site, error) {
	return svc.store.ListSites(ctx)
}

// ConfigureAutopilot updates a site's autopilot settings. Enabling (or
// re-configuring an enabled site) schedules the next run at the cadence
// slot; disabling clears the schedule.
func (svc *Service) ConfigureAutopilot(ctx context.Context, siteID string, s AutopilotSettings) (*Site, error) {
	if s.Cadence == "" {
		s.Cadence = store.CadenceWeekly
	}
	switch s.Cadence {
	case store.CadenceDaily, store.CadenceEvery3Days, store.CadenceWeekly:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCadence, s.Cadence)
	}
	s.EffortLevel = clamp(s.EffortLevel, 1, 3)
	s.ArticlesPerRun = clamp(s.ArticlesPerRun, 1, 5)

	var nextRunAt *int64
	if s.Enabled {
		ms := NextRunAt(s.Cadence, svc.now()).UnixMilli()
		nextRunAt = &ms
	}
	if err := svc.store.UpdateAutopilot(ctx, siteID, s.Enabled, s.Cadence, s.EffortLevel, s.ArticlesPerRun, nextRunAt); err != nil {
		return nil, err
	}
	svc.logger.Info("autopilot configured",
		"site_id", siteID, "enabled", s.Enabled, "cadence", s.Cadence)
	return svc.GetSite(ctx, siteID)
}

// CompleteArticle is the generation callback: it records the produced
// article, consumes the picked keyword, and advances the site's pipeline
// to generating. The keyword flips to used here and nowhere earlier, so
// a cycle abandoned before this point leaves the term available for the
// next pick.
func (svc *Service) CompleteArticle(ctx context.Context, siteID string, a *Article) (*Article, error) {
	site, err := svc.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site.Pipeline().Step != store.StepAwaitingGeneration {
		return nil, fmt.Errorf("%w: site %s is not awaiting generation", ErrPipelineBusy, siteID)
	}

	if a.ID == "" {
		a.ID = svc.newID()
	}
	a.SiteID = siteID
	if a.PrimaryKeyword == "" && site.PipelineKeywordID != "" {
		kw, err := svc.store.GetKeyword(ctx, site.PipelineKeywordID)
		if err != nil {
			return nil, err
		}
		if kw != nil {
			a.PrimaryKeyword = kw.Term
		}
	}
	if err := svc.store.InsertArticle(ctx, a); err != nil {
		return nil, err
	}
	if err := svc.store.SetPipelineArticle(ctx, siteID, a.ID); err != nil {
		return nil, err
	}
	if site.PipelineKeywordID != "" {
		if err := svc.store.MarkKeywordUsed(ctx, site.PipelineKeywordID); err != nil {
			return nil, err
		}
	}
	svc.logger.Info("article recorded",
		"site_id", siteID, "article_id", a.ID, "primary_keyword", a.PrimaryKeyword)
	return a, nil
}

// FinishPipeline returns a site to idle once generation is fully done.
func (svc *Service) FinishPipeline(ctx context.Context, siteID string) error {
	if err := svc.store.ClearPipeline(ctx, siteID); err != nil {
		return err
	}
	svc.logger.Info("pipeline cleared", "site_id", siteID)
	return nil
}

// ListKeywords returns a site's ledger, highest score first.
func (svc *Service) ListKeywords(ctx context.Context, siteID string, f store.KeywordFilter) ([]*Keyword, error) {
	if _, err := svc.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return svc.store.ListKeywords(ctx, siteID, f)
}

// ListArticles returns a site's articles, newest first.
func (svc *Service) ListArticles(ctx context.Context, siteID string) ([]*Article, error) {
	if _, err := svc.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return svc.store.ListArticles(ctx, siteID)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
