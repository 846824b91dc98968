package autopilot

import (
	"context"
	"fmt"
	"time"
)

// ScheduleRuns adds calendar entries for the given YYYY-MM-DD dates and
// returns how many were created. Dates the site already has entries for
// are skipped.
func (svc *Service) ScheduleRuns(ctx context.Context, siteID string, dates []string) (int, error) {
	if _, err := svc.GetSite(ctx, siteID); err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, fmt.Errorf("%w: no dates given", ErrInvalidDate)
	}
	ids := make([]string, len(dates))
	for i, date := range dates {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		ids[i] = svc.newID()
	}
	created, err := svc.store.CreateScheduledRuns(ctx, siteID, dates, ids)
	if err != nil {
		return created, err
	}
	svc.logger.Info("scheduled runs created",
		"site_id", siteID, "requested", len(dates), "created", created)
	return created, nil
}

// Calendar returns a site's calendar entries for a YYYY-MM month.
func (svc *Service) Calendar(ctx context.Context, siteID, month string) ([]*ScheduledRun, error) {
	if _, err := svc.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("%w: month %q", ErrInvalidDate, month)
	}
	from := start.Format("2006-01-02")
	to := start.AddDate(0, 1, -1).Format("2006-01-02")
	return svc.store.ListScheduledRuns(ctx, siteID, from, to)
}

// CancelScheduledRun deletes a pending calendar entry.
func (svc *Service) CancelScheduledRun(ctx context.Context, runID string) error {
	return svc.store.DeleteScheduledRun(ctx, runID)
}
