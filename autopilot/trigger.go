package autopilot

import (
	"context"
	"time"

	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
)

// Cadence runs fire at a fixed hour so publication times are predictable
// across time zones.
const runHourUTC = 6

func cadenceDays(cadence string) int {
	switch cadence {
	case store.CadenceDaily:
		return 1
	case store.CadenceEvery3Days:
		return 3
	default:
		return 7
	}
}

// NextRunAt computes the next cadence slot after now: the cadence interval
// ahead, normalized to 06:00 UTC.
func NextRunAt(cadence string, now time.Time) time.Time {
	d := now.UTC().AddDate(0, 0, cadenceDays(cadence))
	return time.Date(d.Year(), d.Month(), d.Day(), runHourUTC, 0, 0, 0, time.UTC)
}

// TriggerResult summarizes one trigger invocation.
type TriggerResult struct {
	SiteID     string `json:"site_id,omitempty"`
	KeywordID  string `json:"keyword_id,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
	Released   bool   `json:"released,omitempty"`
	RunsPicked int    `json:"runs_picked"`
	RunsFailed int    `json:"runs_failed"`
}

// RunTrigger performs one trigger invocation: claim at most one due site
// for a cadence cycle, then drain the due content-calendar backlog. It is
// safe to invoke concurrently; the claim is atomic and each calendar
// entry transitions exactly once.
func (svc *Service) RunTrigger(ctx context.Context) (*TriggerResult, error) {
	now := svc.now()
	result := &TriggerResult{}

	slots := map[string]int64{
		store.CadenceDaily:      NextRunAt(store.CadenceDaily, now).UnixMilli(),
		store.CadenceEvery3Days: NextRunAt(store.CadenceEvery3Days, now).UnixMilli(),
		store.CadenceWeekly:     NextRunAt(store.CadenceWeekly, now).UnixMilli(),
	}
	site, err := svc.store.ClaimDueSite(ctx, now, slots)
	if err != nil {
		return nil, err
	}
	if site != nil {
		result.SiteID = site.ID
		kw, err := svc.eligibleKeyword(ctx, site.ID)
		if err != nil {
			svc.releaseClaim(ctx, site.ID, err.Error())
			return nil, err
		}
		if kw == nil {
			if err := svc.store.ReleaseClaim(ctx, site.ID, "no eligible keyword"); err != nil {
				return nil, err
			}
			result.Released = true
			svc.logger.Warn("cycle released: no eligible keyword", "site_id", site.ID)
		} else {
			if err := svc.store.SetPipelineKeyword(ctx, site.ID, kw.ID); err != nil {
				svc.releaseClaim(ctx, site.ID, err.Error())
				return nil, err
			}
			result.KeywordID = kw.ID
			result.Keyword = kw.Term
			svc.logger.Info("cycle started",
				"site_id", site.ID, "keyword", kw.Term, "score", kw.Score)
		}
	}

	if err := svc.processScheduledRuns(ctx, now, result); err != nil {
		return nil, err
	}
	return result, nil
}

// eligibleKeyword returns the site's best active keyword that is not
// already committed to the cadence pipeline or a picked calendar entry.
// The keyword stays active here; it flips to used only when its article
// is recorded, so an abandoned cycle puts the term back in play.
func (svc *Service) eligibleKeyword(ctx context.Context, siteID string) (*Keyword, error) {
	committed, err := svc.store.CommittedKeywordIDs(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return svc.store.BestKeyword(ctx, siteID, committed...)
}

// releaseClaim is best-effort cleanup when a cycle dies between claim and
// keyword commit; the site must not stay wedged in awaiting_generation.
func (svc *Service) releaseClaim(ctx context.Context, siteID, cause string) {
	if err := svc.store.ReleaseClaim(ctx, siteID, cause); err != nil {
		svc.logger.Error("release claim failed", "site_id", siteID, "error", err)
	}
}

// processScheduledRuns drains every calendar entry dated today or earlier.
// Each entry picks the site's best uncommitted keyword without touching
// the cadence pipeline; a site with nothing eligible gets the entry
// marked failed.
func (svc *Service) processScheduledRuns(ctx context.Context, now time.Time, result *TriggerResult) error {
	today := now.UTC().Format("2006-01-02")
	due, err := svc.store.DueScheduledRuns(ctx, today)
	if err != nil {
		return err
	}
	for _, run := range due {
		kw, err := svc.eligibleKeyword(ctx, run.SiteID)
		if err != nil {
			return err
		}
		if kw == nil {
			if err := svc.store.MarkRunFailed(ctx, run.ID, "no eligible keyword"); err != nil {
				return err
			}
			result.RunsFailed++
			svc.logger.Warn("scheduled run failed: no eligible keyword",
				"run_id", run.ID, "site_id", run.SiteID, "run_date", run.RunDate)
			continue
		}
		if err := svc.store.MarkRunPicked(ctx, run.ID, kw.ID, kw.Term); err != nil {
			return err
		}
		result.RunsPicked++
		svc.logger.Info("scheduled run picked",
			"run_id", run.ID, "site_id", run.SiteID, "keyword", kw.Term)
	}
	return nil
}
