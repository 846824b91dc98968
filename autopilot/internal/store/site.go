package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const siteColumns = `id, org_id, name, domain, autopilot_enabled, cadence,
	effort_level, articles_per_run, pipeline_step, pipeline_keyword_id,
	pipeline_article_id, next_run_at, last_run_at, last_error, created_at, updated_at`

// InsertSite adds a new site.
func (s *Store) InsertSite(ctx context.Context, site *Site) error {
	now := time.Now().UnixMilli()
	if site.CreatedAt == 0 {
		site.CreatedAt = now
	}
	if site.UpdatedAt == 0 {
		site.UpdatedAt = now
	}
	if site.Cadence == "" {
		site.Cadence = CadenceWeekly
	}
	if site.EffortLevel == 0 {
		site.EffortLevel = 2
	}
	if site.ArticlesPerRun == 0 {
		site.ArticlesPerRun = 1
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sites (id, org_id, name, domain, autopilot_enabled, cadence,
		effort_level, articles_per_run, pipeline_step, pipeline_keyword_id,
		pipeline_article_id, next_run_at, last_run_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.OrgID, site.Name, site.Domain, site.AutopilotEnabled, site.Cadence,
		site.EffortLevel, site.ArticlesPerRun, nullIfEmpty(site.PipelineStep),
		nullIfEmpty(site.PipelineKeywordID), nullIfEmpty(site.PipelineArticleID),
		site.NextRunAt, site.LastRunAt, site.LastError, site.CreatedAt, site.UpdatedAt,
	)
	return err
}

// GetSite retrieves a site by ID, or nil when it does not exist.
func (s *Store) GetSite(ctx context.Context, id string) (*Site, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	return scanSite(row.Scan)
}

// ListSites returns all sites, newest first.
func (s *Store) ListSites(ctx context.Context) ([]*Site, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows.Scan)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// UpdateAutopilot persists the autopilot configuration for a site.
// nextRunAt carries the freshly computed cadence slot, or nil when
// autopilot is being disabled (no further automated scheduling).
func (s *Store) UpdateAutopilot(ctx context.Context, id string, enabled bool, cadence string, effortLevel, articlesPerRun int, nextRunAt *int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sites SET autopilot_enabled=?, cadence=?, effort_level=?,
		articles_per_run=?, next_run_at=?, updated_at=?
		WHERE id=?`,
		enabled, cadence, effortLevel, articlesPerRun, nextRunAt,
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	return errIfMissing(res, "site", id)
}

// ClaimDueSite atomically claims the oldest-due idle site: autopilot
// enabled, next_run_at in the past, pipeline_step NULL. The single
// conditional UPDATE guarantees that of two overlapping trigger
// invocations exactly one receives the site; the loser gets (nil, nil).
//
// The claim itself advances the scheduling columns: last_run_at is stamped
// and next_run_at moves to the site's next cadence slot, so a cycle that
// later fails to find a keyword retries on the next due slot instead of
// monopolizing every trigger invocation.
func (s *Store) ClaimDueSite(ctx context.Context, now time.Time, nextRunByCadence map[string]int64) (*Site, error) {
	nowMs := now.UnixMilli()
	row := s.DB.QueryRowContext(ctx,
		`UPDATE sites SET
			pipeline_step = ?,
			pipeline_keyword_id = NULL,
			last_run_at = ?,
			next_run_at = CASE cadence WHEN ? THEN ? WHEN ? THEN ? ELSE ? END,
			updated_at = ?
		WHERE id = (
			SELECT id FROM sites
			WHERE autopilot_enabled = 1
			  AND pipeline_step IS NULL
			  AND next_run_at IS NOT NULL AND next_run_at <= ?
			ORDER BY next_run_at ASC, id ASC
			LIMIT 1
		) AND pipeline_step IS NULL
		RETURNING `+siteColumns,
		string(StepAwaitingGeneration), nowMs,
		CadenceDaily, nextRunByCadence[CadenceDaily],
		CadenceEvery3Days, nextRunByCadence[CadenceEvery3Days],
		nextRunByCadence[CadenceWeekly],
		nowMs, nowMs,
	)
	site, err := scanSite(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("claim due site: %w", err)
	}
	return site, nil
}

// SetPipelineKeyword records the chosen keyword on a freshly claimed site
// and clears any previous error.
func (s *Store) SetPipelineKeyword(ctx context.Context, siteID, keywordID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sites SET pipeline_keyword_id=?, last_error='', updated_at=?
		WHERE id=? AND pipeline_step=?`,
		keywordID, time.Now().UnixMilli(), siteID, string(StepAwaitingGeneration))
	if err != nil {
		return err
	}
	return errIfMissing(res, "claimed site", siteID)
}

// ReleaseClaim returns a claimed site to idle with a descriptive error,
// used when no eligible keyword exists this cycle.
func (s *Store) ReleaseClaim(ctx context.Context, siteID, lastError string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sites SET pipeline_step=NULL, pipeline_keyword_id=NULL,
		last_error=?, updated_at=?
		WHERE id=?`,
		lastError, time.Now().UnixMilli(), siteID)
	return err
}

// SetPipelineArticle advances a site to the generating step, recording the
// article produced for the claimed keyword.
func (s *Store) SetPipelineArticle(ctx context.Context, siteID, articleID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sites SET pipeline_step=?, pipeline_article_id=?, updated_at=?
		WHERE id=? AND pipeline_step=?`,
		string(StepGenerating), articleID, time.Now().UnixMilli(),
		siteID, string(StepAwaitingGeneration))
	if err != nil {
		return err
	}
	return errIfMissing(res, "claimed site", siteID)
}

// ClearPipeline resets all pipeline columns to idle. Called when the
// downstream generation work finishes or is abandoned.
func (s *Store) ClearPipeline(ctx context.Context, siteID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sites SET pipeline_step=NULL, pipeline_keyword_id=NULL,
		pipeline_article_id=NULL, last_error='', updated_at=?
		WHERE id=?`,
		time.Now().UnixMilli(), siteID)
	if err != nil {
		return err
	}
	return errIfMissing(res, "site", siteID)
}

func scanSite(scan func(dest ...any) error) (*Site, error) {
	var site Site
	var enabled int
	var step, keywordID, articleID sql.NullString
	err := scan(
		&site.ID, &site.OrgID, &site.Name, &site.Domain, &enabled, &site.Cadence,
		&site.EffortLevel, &site.ArticlesPerRun, &step, &keywordID, &articleID,
		&site.NextRunAt, &site.LastRunAt, &site.LastError, &site.CreatedAt, &site.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan site: %w", err)
	}
	site.AutopilotEnabled = enabled != 0
	site.PipelineStep = step.String
	site.PipelineKeywordID = keywordID.String
	site.PipelineArticleID = articleID.String
	return &site, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func errIfMissing(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", what, id)
	}
	return nil
}
