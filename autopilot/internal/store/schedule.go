package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const runColumns = `id, site_id, run_date, status, keyword_id, keyword_text,
	error, created_at, updated_at`

// CreateScheduledRuns inserts calendar entries for the given dates and
// returns how many were created. A date the site already has an entry for
// is silently skipped, so re-submitting an overlapping plan never
// duplicates rows. IDs are consumed from ids in order; callers supply one
// per date.
func (s *Store) CreateScheduledRuns(ctx context.Context, siteID string, dates, ids []string) (int, error) {
	if len(ids) < len(dates) {
		return 0, fmt.Errorf("create scheduled runs: %d ids for %d dates", len(ids), len(dates))
	}
	now := time.Now().UnixMilli()
	created := 0
	for i, date := range dates {
		res, err := s.DB.ExecContext(ctx,
			`INSERT OR IGNORE INTO scheduled_runs (id, site_id, run_date, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ids[i], siteID, date, RunPending, now, now)
		if err != nil {
			return created, fmt.Errorf("create scheduled run %s: %w", date, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, err
		}
		created += int(n)
	}
	return created, nil
}

// ListScheduledRuns returns a site's calendar entries within [from, to],
// both YYYY-MM-DD inclusive, earliest first.
func (s *Store) ListScheduledRuns(ctx context.Context, siteID, from, to string) ([]*ScheduledRun, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM scheduled_runs
		WHERE site_id = ? AND run_date >= ? AND run_date <= ?
		ORDER BY run_date ASC`, siteID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScheduledRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DueScheduledRuns returns every pending run dated today or earlier,
// oldest first, across all sites.
func (s *Store) DueScheduledRuns(ctx context.Context, today string) ([]*ScheduledRun, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM scheduled_runs
		WHERE status = ? AND run_date <= ?
		ORDER BY run_date ASC, id ASC`, RunPending, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScheduledRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteScheduledRun removes a calendar entry that has not been processed
// yet. Picked or failed runs are history and stay.
func (s *Store) DeleteScheduledRun(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM scheduled_runs WHERE id = ? AND status = ?`, id, RunPending)
	if err != nil {
		return err
	}
	return errIfMissing(res, "pending scheduled run", id)
}

// MarkRunPicked records the keyword chosen for a calendar entry.
func (s *Store) MarkRunPicked(ctx context.Context, id, keywordID, keywordText string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scheduled_runs SET status=?, keyword_id=?, keyword_text=?, updated_at=?
		WHERE id=? AND status=?`,
		RunKeywordPicked, keywordID, keywordText, time.Now().UnixMilli(), id, RunPending)
	if err != nil {
		return err
	}
	return errIfMissing(res, "pending scheduled run", id)
}

// MarkRunFailed records why a calendar entry could not be processed.
func (s *Store) MarkRunFailed(ctx context.Context, id, reason string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scheduled_runs SET status=?, error=?, updated_at=?
		WHERE id=? AND status=?`,
		RunFailed, reason, time.Now().UnixMilli(), id, RunPending)
	if err != nil {
		return err
	}
	return errIfMissing(res, "pending scheduled run", id)
}

func scanRun(scan func(dest ...any) error) (*ScheduledRun, error) {
	var r ScheduledRun
	var keywordID sql.NullString
	err := scan(
		&r.ID, &r.SiteID, &r.RunDate, &r.Status, &keywordID, &r.KeywordText,
		&r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scheduled run: %w", err)
	}
	r.KeywordID = keywordID.String
	return &r, nil
}
