package autopilot

import (
	"context"
	"fmt"

	"github.com/rankpilothq/rankpilot/autopilot/internal/scoring"
	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
)

// IngestSummary reports one ingest pass. Failed counts rows that could
// not be written; a partial failure never aborts the pass.
type IngestSummary struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Rescored int    `json:"rescored"`
	Failed   int    `json:"failed"`
}

// IngestSearchConsole refreshes a site's ledger from search-console
// performance rows and re-scores every term it touches. lookbackDays
// overrides the configured window when positive.
func (svc *Service) IngestSearchConsole(ctx context.Context, siteID string, lookbackDays int) (*IngestSummary, error) {
	if svc.search == nil {
		return nil, fmt.Errorf("autopilot: search console client not configured")
	}
	site, err := svc.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if lookbackDays <= 0 {
		lookbackDays = svc.config.SearchConsole.LookbackDays
	}
	rows, err := svc.search.Query(ctx, "sc-domain:"+site.Domain, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("search console query: %w", err)
	}

	snapshot, err := svc.store.KeywordSnapshot(ctx, siteID)
	if err != nil {
		return nil, err
	}
	covered, err := svc.store.CoveredTerms(ctx, siteID)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{Source: "search_console", Fetched: len(rows)}
	for _, row := range rows {
		sig := scoring.Signals{
			Term:        row.Term,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Position:    row.Position,
		}
		// Merge stored market data so scoring sees the full picture.
		if existing := snapshot[scoring.NormalizeTerm(row.Term)]; existing != nil {
			if existing.SearchVolume != nil {
				sig.SearchVolume = *existing.SearchVolume
			}
			if existing.Competition != nil {
				sig.Competition = *existing.Competition
			}
			if existing.CompetitionIdx != nil {
				sig.CompetitionIdx = *existing.CompetitionIdx
			}
		}
		assessment := scoring.Evaluate(sig, covered)

		clicks, impressions, ctr, position := row.Clicks, row.Impressions, row.CTR, row.Position
		err := svc.store.UpsertKeyword(ctx, &store.KeywordUpsert{
			ID:          svc.newID(),
			SiteID:      siteID,
			Term:        row.Term,
			Clicks:      &clicks,
			Impressions: &impressions,
			CTR:         &ctr,
			Position:    &position,
			Assessment:  &assessment,
		})
		if err != nil {
			summary.Failed++
			svc.logger.Warn("keyword upsert failed",
				"site_id", siteID, "term", row.Term, "error", err)
			continue
		}
		summary.Upserted++
		summary.Rescored++
	}

	svc.logger.Info("search console ingest done",
		"site_id", siteID, "fetched", summary.Fetched,
		"upserted", summary.Upserted, "failed", summary.Failed)
	return summary, nil
}

// IngestResearch discovers candidate keywords for a site and reconciles
// their market data into the ledger. Callers may supply seed terms
// directly, or a page URL to extract them from; with neither, seeds come
// from the site's own homepage. A candidate's content-gap score only
// replaces the stored assessment when it improves on it; market data
// alone never downgrades a term.
func (svc *Service) IngestResearch(ctx context.Context, siteID string, seedTerms []string, seedURL string) (*IngestSummary, error) {
	if svc.research == nil {
		return nil, fmt.Errorf("autopilot: research client not configured")
	}
	site, err := svc.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	seeds := seedTerms
	if len(seeds) == 0 {
		if svc.fetchSeeds == nil {
			return nil, fmt.Errorf("autopilot: seed fetcher not configured")
		}
		if seedURL == "" {
			seedURL = "https://" + site.Domain
		}
		seeds, err = svc.fetchSeeds(ctx, seedURL)
		if err != nil {
			return nil, fmt.Errorf("fetch seeds: %w", err)
		}
	}
	ideas, err := svc.research.Ideas(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("keyword ideas: %w", err)
	}

	snapshot, err := svc.store.KeywordSnapshot(ctx, siteID)
	if err != nil {
		return nil, err
	}
	covered, err := svc.store.CoveredTerms(ctx, siteID)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{Source: "research", Fetched: len(ideas)}
	for _, idea := range ideas {
		sig := scoring.Signals{
			Term:           idea.Term,
			SearchVolume:   idea.SearchVolume,
			Competition:    idea.Competition,
			CompetitionIdx: idea.CompetitionIndex,
		}
		var prevScore float64
		if existing := snapshot[scoring.NormalizeTerm(idea.Term)]; existing != nil {
			prevScore = existing.Score
			if existing.Position != nil {
				sig.Position = *existing.Position
			}
		}

		up := &store.KeywordUpsert{
			ID:           svc.newID(),
			SiteID:       siteID,
			Term:         idea.Term,
			SearchVolume: &idea.SearchVolume,
		}
		if idea.Competition != "" {
			up.Competition = &idea.Competition
		}
		up.CompetitionIdx = &idea.CompetitionIndex

		if assessment, ok := scoring.EvaluateMarket(sig, prevScore, covered); ok {
			up.Assessment = &assessment
		}
		if err := svc.store.UpsertKeyword(ctx, up); err != nil {
			summary.Failed++
			svc.logger.Warn("keyword upsert failed",
				"site_id", siteID, "term", idea.Term, "error", err)
			continue
		}
		summary.Upserted++
		if up.Assessment != nil {
			summary.Rescored++
		}
	}

	svc.logger.Info("research ingest done",
		"site_id", siteID, "fetched", summary.Fetched,
		"upserted", summary.Upserted, "rescored", summary.Rescored,
		"failed", summary.Failed)
	return summary, nil
}
