package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rankpilothq/rankpilot/autopilot/internal/scoring"
)

const keywordColumns = `id, site_id, term, term_norm, clicks, impressions, ctr, position,
	search_volume, competition, competition_index, opportunity, score, reasoning,
	action, cluster, status, created_at, updated_at`

// KeywordUpsert is one ingest write. Metric pointers that are nil leave the
// stored value untouched ("set if present"); non-nil pointers overwrite.
// Assessment nil means the write path is not re-scoring: derived fields
// (opportunity, score, reasoning, action, cluster) keep their stored values.
type KeywordUpsert struct {
	ID             string // used only when the term is new
	SiteID         string
	Term           string
	Clicks         *int64
	Impressions    *int64
	CTR            *float64
	Position       *float64
	SearchVolume   *int64
	Competition    *string
	CompetitionIdx *float64
	Assessment     *scoring.Assessment
}

// UpsertKeyword writes one keyword through the ledger's dedup discipline:
// an insert keyed on (site_id, term_norm) that falls back to an update on
// conflict. Re-running an ingest is therefore idempotent with respect to
// keyword identity, and differing term casing never creates a duplicate.
// The lifecycle status is never modified on conflict, so a used keyword
// stays used across refreshes.
func (s *Store) UpsertKeyword(ctx context.Context, up *KeywordUpsert) error {
	now := time.Now().UnixMilli()
	norm := scoring.NormalizeTerm(up.Term)
	if norm == "" {
		return fmt.Errorf("upsert keyword: empty term")
	}

	rescored := 0
	var opportunity, reasoning, action, cluster string
	var score float64
	if up.Assessment != nil {
		rescored = 1
		opportunity = string(up.Assessment.Category)
		score = up.Assessment.Score
		reasoning = up.Assessment.Reasoning
		action = up.Assessment.Action
		cluster = up.Assessment.Cluster
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO keywords (id, site_id, term, term_norm, clicks, impressions, ctr,
		position, search_volume, competition, competition_index, opportunity, score,
		reasoning, action, cluster, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, term_norm) DO UPDATE SET
			term = excluded.term,
			clicks = COALESCE(excluded.clicks, clicks),
			impressions = COALESCE(excluded.impressions, impressions),
			ctr = COALESCE(excluded.ctr, ctr),
			position = COALESCE(excluded.position, position),
			search_volume = COALESCE(excluded.search_volume, search_volume),
			competition = COALESCE(excluded.competition, competition),
			competition_index = COALESCE(excluded.competition_index, competition_index),
			opportunity = CASE WHEN ? = 1 THEN excluded.opportunity ELSE opportunity END,
			score = CASE WHEN ? = 1 THEN excluded.score ELSE score END,
			reasoning = CASE WHEN ? = 1 THEN excluded.reasoning ELSE reasoning END,
			action = CASE WHEN ? = 1 THEN excluded.action ELSE action END,
			cluster = CASE WHEN ? = 1 THEN excluded.cluster ELSE cluster END,
			updated_at = excluded.updated_at`,
		up.ID, up.SiteID, up.Term, norm, up.Clicks, up.Impressions, up.CTR,
		up.Position, up.SearchVolume, up.Competition, up.CompetitionIdx, opportunity,
		score, reasoning, action, cluster, KeywordActive, now, now,
		rescored, rescored, rescored, rescored, rescored,
	)
	if err != nil {
		return fmt.Errorf("upsert keyword %q: %w", up.Term, err)
	}
	return nil
}

// GetKeyword retrieves a keyword by ID, or nil.
func (s *Store) GetKeyword(ctx context.Context, id string) (*Keyword, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE id = ?`, id)
	return scanKeyword(row.Scan)
}

// KeywordFilter narrows ListKeywords. Zero values mean "no filter".
type KeywordFilter struct {
	Status      string
	Opportunity string
	Limit       int
}

// ListKeywords returns a site's keywords, highest score first.
func (s *Store) ListKeywords(ctx context.Context, siteID string, f KeywordFilter) ([]*Keyword, error) {
	where := []string{"site_id = ?"}
	args := []any{siteID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Opportunity != "" {
		where = append(where, "opportunity = ?")
		args = append(args, f.Opportunity)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE `+strings.Join(where, " AND ")+`
		ORDER BY score DESC, term_norm ASC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []*Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows.Scan)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// BestKeyword returns the site's highest-scoring active keyword with a
// positive score, or nil when no keyword is eligible. Keyword IDs in
// exclude are skipped; callers pass the IDs already committed to
// in-flight work.
func (s *Store) BestKeyword(ctx context.Context, siteID string, exclude ...string) (*Keyword, error) {
	query := `SELECT ` + keywordColumns + ` FROM keywords
		WHERE site_id = ? AND status = ? AND score > 0`
	args := []any{siteID, KeywordActive}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY score DESC, updated_at ASC LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, args...)
	return scanKeyword(row.Scan)
}

// CommittedKeywordIDs returns the keyword IDs already promised to
// in-flight work for a site: the cadence pipeline's claimed keyword and
// every calendar entry whose keyword is picked. These keywords are still
// active (they only flip to used when their article lands) but must not
// be picked a second time.
func (s *Store) CommittedKeywordIDs(ctx context.Context, siteID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT pipeline_keyword_id FROM sites
		WHERE id = ? AND pipeline_keyword_id IS NOT NULL
		UNION
		SELECT keyword_id FROM scheduled_runs
		WHERE site_id = ? AND status = ? AND keyword_id IS NOT NULL`,
		siteID, siteID, RunKeywordPicked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// KeywordSnapshot returns the site's keywords keyed by normalized term.
// Ingest passes this read-only map into the scoring engine so the engine
// never touches the datastore.
func (s *Store) KeywordSnapshot(ctx context.Context, siteID string) (map[string]*Keyword, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE site_id = ?`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[string]*Keyword)
	for rows.Next() {
		kw, err := scanKeyword(rows.Scan)
		if err != nil {
			return nil, err
		}
		snapshot[kw.TermNorm] = kw
	}
	return snapshot, rows.Err()
}

// MarkKeywordUsed flips a keyword's lifecycle status to used. This is the
// only path that transitions status; refresh ingests never touch it.
func (s *Store) MarkKeywordUsed(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE keywords SET status=?, updated_at=? WHERE id=? AND status=?`,
		KeywordUsed, time.Now().UnixMilli(), id, KeywordActive)
	if err != nil {
		return err
	}
	return errIfMissing(res, "active keyword", id)
}

func scanKeyword(scan func(dest ...any) error) (*Keyword, error) {
	var kw Keyword
	err := scan(
		&kw.ID, &kw.SiteID, &kw.Term, &kw.TermNorm, &kw.Clicks, &kw.Impressions,
		&kw.CTR, &kw.Position, &kw.SearchVolume, &kw.Competition, &kw.CompetitionIdx,
		&kw.Opportunity, &kw.Score, &kw.Reasoning, &kw.Action, &kw.Cluster,
		&kw.Status, &kw.CreatedAt, &kw.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan keyword: %w", err)
	}
	return &kw, nil
}
