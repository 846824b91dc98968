package autopilot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rankpilothq/rankpilot/autopilot/internal/scoring"
	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
	"github.com/rankpilothq/rankpilot/dbopen"
	_ "modernc.org/sqlite"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(db, nil, logger, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func addScoredKeyword(t *testing.T, svc *Service, siteID, term string, score float64) string {
	t.Helper()
	id := svc.newID()
	err := svc.store.UpsertKeyword(context.Background(), &store.KeywordUpsert{
		ID: id, SiteID: siteID, Term: term,
		Assessment: &scoring.Assessment{
			Category: scoring.CategoryQuickWin, Score: score, Cluster: "general",
		},
	})
	if err != nil {
		t.Fatalf("add keyword %q: %v", term, err)
	}
	return id
}

func TestNextRunAt_SlotNormalization(t *testing.T) {
	// WHAT: The next slot lands at 06:00 UTC regardless of when the
	// current cycle started.
	// WHY: Predictable publication times are a product guarantee.
	now := time.Date(2024, 1, 1, 13, 47, 0, 0, time.UTC)

	got := NextRunAt(CadenceWeekly, now)
	want := time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("weekly: got %v, want %v", got, want)
	}

	got = NextRunAt(CadenceDaily, now)
	want = time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("daily: got %v, want %v", got, want)
	}

	got = NextRunAt(CadenceEvery3Days, now)
	want = time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("every_3_days: got %v, want %v", got, want)
	}
}

func TestConfigureAutopilot(t *testing.T) {
	// WHAT: Enabling autopilot schedules the next slot; out-of-range
	// effort and volume are clamped; bad cadences are rejected.
	// WHY: This is the single write path for scheduling configuration.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 13, 47, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, err := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	got, err := svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{
		Enabled: true, Cadence: CadenceWeekly, EffortLevel: 9, ArticlesPerRun: 0,
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if got.EffortLevel != 3 {
		t.Errorf("effort_level: got %d, want 3 (clamped)", got.EffortLevel)
	}
	if got.ArticlesPerRun != 1 {
		t.Errorf("articles_per_run: got %d, want 1 (clamped)", got.ArticlesPerRun)
	}
	wantNext := time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC).UnixMilli()
	if got.NextRunAt == nil || *got.NextRunAt != wantNext {
		t.Errorf("next_run_at: got %v, want %d", got.NextRunAt, wantNext)
	}

	if _, err := svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Cadence: "hourly"}); err == nil {
		t.Error("expected error for bad cadence")
	}

	got, err = svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: false, Cadence: CadenceWeekly, EffortLevel: 2, ArticlesPerRun: 1})
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got.NextRunAt != nil {
		t.Errorf("next_run_at should clear on disable, got %v", got.NextRunAt)
	}
}

func TestRunTrigger_StartsCycle(t *testing.T) {
	// WHAT: A due site is claimed, its best keyword committed to the
	// pipeline, and the schedule advanced to the next cadence slot.
	// WHY: This is the full happy path of the cadence pipeline.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 13, 47, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
	addScoredKeyword(t, svc, site.ID, "crm pricing", 40)
	bestID := addScoredKeyword(t, svc, site.ID, "best crm software", 72)

	clk.now = time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	result, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.SiteID != site.ID {
		t.Fatalf("claimed site: got %q, want %q", result.SiteID, site.ID)
	}
	if result.KeywordID != bestID {
		t.Errorf("keyword: got %q, want %q (highest score)", result.KeywordID, bestID)
	}

	got, _ := svc.GetSite(ctx, site.ID)
	if got.Pipeline().Step != StepAwaitingGeneration {
		t.Errorf("step: got %q", got.PipelineStep)
	}
	if got.PipelineKeywordID != bestID {
		t.Errorf("pipeline keyword: got %q", got.PipelineKeywordID)
	}
	wantNext := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC).UnixMilli()
	if got.NextRunAt == nil || *got.NextRunAt != wantNext {
		t.Errorf("next_run_at: got %v, want %d", got.NextRunAt, wantNext)
	}

	// The keyword is committed, not consumed: it stays active until the
	// article lands, but a follow-up pick must skip it.
	kw, _ := svc.store.GetKeyword(ctx, bestID)
	if kw.Status != store.KeywordActive {
		t.Errorf("keyword status: got %q, want active until the article is recorded", kw.Status)
	}
	next, err := svc.eligibleKeyword(ctx, site.ID)
	if err != nil {
		t.Fatalf("eligible keyword: %v", err)
	}
	if next == nil || next.ID == bestID {
		t.Errorf("next pick: got %+v, want the second-best keyword", next)
	}
}

func TestFinishPipeline_AbandonedCycleKeepsKeyword(t *testing.T) {
	// WHAT: Clearing a pipeline before any article is recorded leaves the
	// picked keyword active and pickable again.
	// WHY: A failed or abandoned generation must not permanently consume
	// the term; only a recorded article does.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
	kwID := addScoredKeyword(t, svc, site.ID, "best crm software", 72)

	clk.now = clk.now.Add(48 * time.Hour)
	if _, err := svc.RunTrigger(ctx); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := svc.FinishPipeline(ctx, site.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	kw, _ := svc.store.GetKeyword(ctx, kwID)
	if kw.Status != store.KeywordActive {
		t.Errorf("keyword status: got %q, want active", kw.Status)
	}
	best, err := svc.store.BestKeyword(ctx, site.ID)
	if err != nil {
		t.Fatalf("best keyword: %v", err)
	}
	if best == nil || best.ID != kwID {
		t.Errorf("best keyword after abandon: got %+v, want %s", best, kwID)
	}
}

func TestRunTrigger_ReleasesOnStoreError(t *testing.T) {
	// WHAT: A store failure between claim and keyword commit releases the
	// claim with the error recorded.
	// WHY: The site must not stay wedged in awaiting_generation when the
	// cycle dies mid-flight.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
	addScoredKeyword(t, svc, site.ID, "best crm software", 72)

	// Breaking the keywords table makes the pick fail after the claim
	// has already succeeded.
	if _, err := svc.store.DB.Exec(`DROP TABLE keywords`); err != nil {
		t.Fatalf("drop keywords: %v", err)
	}

	clk.now = clk.now.Add(48 * time.Hour)
	if _, err := svc.RunTrigger(ctx); err == nil {
		t.Fatal("expected error from broken keyword store")
	}

	got, _ := svc.GetSite(ctx, site.ID)
	if !got.Pipeline().Idle() {
		t.Errorf("step: got %q, want idle after release", got.PipelineStep)
	}
	if got.LastError == "" {
		t.Error("last_error should record the failure")
	}
}

func TestRunTrigger_OneSitePerInvocation(t *testing.T) {
	// WHAT: Each invocation starts at most one cadence cycle even with
	// several sites due.
	// WHY: Generation capacity is budgeted per trigger tick.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta"} {
		site, _ := svc.CreateSite(ctx, "org-1", name, name+".example.com")
		svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
		addScoredKeyword(t, svc, site.ID, name+" keyword", 50)
	}

	clk.now = clk.now.Add(48 * time.Hour)
	first, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	second, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if first.SiteID == "" || second.SiteID == "" {
		t.Fatal("both triggers should claim a site")
	}
	if first.SiteID == second.SiteID {
		t.Errorf("same site claimed twice: %s", first.SiteID)
	}

	third, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("third trigger: %v", err)
	}
	if third.SiteID != "" {
		t.Errorf("third trigger should claim nothing, got %s", third.SiteID)
	}
}

func TestRunTrigger_ReleasesWithoutKeyword(t *testing.T) {
	// WHAT: A due site with no eligible keyword goes back to idle with
	// the reason recorded, and waits for its next slot.
	// WHY: An empty ledger must not wedge the site or starve others.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceWeekly, EffortLevel: 2, ArticlesPerRun: 1})

	clk.now = clk.now.Add(8 * 24 * time.Hour)
	result, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !result.Released {
		t.Error("result should report the released claim")
	}

	got, _ := svc.GetSite(ctx, site.ID)
	if !got.Pipeline().Idle() {
		t.Errorf("step: got %q, want idle", got.PipelineStep)
	}
	if got.LastError != "no eligible keyword" {
		t.Errorf("last_error: got %q", got.LastError)
	}
}

func TestRunTrigger_ProcessesCalendar(t *testing.T) {
	// WHAT: Due calendar entries each pick a keyword; a site with no
	// eligible keyword gets the entry marked failed; the cadence pipeline
	// columns stay untouched.
	// WHY: The calendar runs independently of the cadence pipeline.
	clk := &fakeClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	rich, _ := svc.CreateSite(ctx, "org-1", "Rich", "rich.example.com")
	poor, _ := svc.CreateSite(ctx, "org-1", "Poor", "poor.example.com")
	// Enabled but not due: the next slot is tomorrow 06:00.
	svc.ConfigureAutopilot(ctx, rich.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
	kwID := addScoredKeyword(t, svc, rich.ID, "crm pricing", 60)

	if _, err := svc.ScheduleRuns(ctx, rich.ID, []string{"2024-01-09"}); err != nil {
		t.Fatalf("schedule rich: %v", err)
	}
	if _, err := svc.ScheduleRuns(ctx, poor.ID, []string{"2024-01-08"}); err != nil {
		t.Fatalf("schedule poor: %v", err)
	}

	result, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.SiteID != "" {
		t.Fatalf("no site should be claimed, got %q", result.SiteID)
	}
	if result.RunsPicked != 1 || result.RunsFailed != 1 {
		t.Fatalf("runs: picked=%d failed=%d, want 1/1", result.RunsPicked, result.RunsFailed)
	}

	runs, _ := svc.Calendar(ctx, rich.ID, "2024-01")
	if len(runs) != 1 || runs[0].Status != store.RunKeywordPicked {
		t.Errorf("rich run: got %+v", runs)
	}
	if runs[0].KeywordID != kwID || runs[0].KeywordText != "crm pricing" {
		t.Errorf("rich run keyword: got %q %q", runs[0].KeywordID, runs[0].KeywordText)
	}

	// Advancing a calendar entry must not touch the cadence pipeline, and
	// the keyword stays active until its article is recorded.
	got, _ := svc.GetSite(ctx, rich.ID)
	if !got.Pipeline().Idle() || got.PipelineKeywordID != "" {
		t.Errorf("pipeline: got step=%q keyword=%q, want untouched", got.PipelineStep, got.PipelineKeywordID)
	}
	kw, _ := svc.store.GetKeyword(ctx, kwID)
	if kw.Status != store.KeywordActive {
		t.Errorf("keyword status: got %q, want active", kw.Status)
	}

	failed, _ := svc.Calendar(ctx, poor.ID, "2024-01")
	if len(failed) != 1 || failed[0].Status != store.RunFailed {
		t.Errorf("poor run: got %+v", failed)
	}
}

func TestRunTrigger_CalendarNeverDoubleSpends(t *testing.T) {
	// WHAT: Two due calendar entries for one site pick distinct keywords,
	// and a third entry with nothing left is marked failed even though the
	// picked keywords are still active.
	// WHY: A keyword committed to one run must not be handed out again
	// while its article is pending.
	clk := &fakeClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	firstID := addScoredKeyword(t, svc, site.ID, "best crm software", 72)
	secondID := addScoredKeyword(t, svc, site.ID, "crm pricing", 40)

	if _, err := svc.ScheduleRuns(ctx, site.ID, []string{"2024-01-07", "2024-01-08", "2024-01-09"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	result, err := svc.RunTrigger(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.RunsPicked != 2 || result.RunsFailed != 1 {
		t.Fatalf("runs: picked=%d failed=%d, want 2/1", result.RunsPicked, result.RunsFailed)
	}

	runs, _ := svc.Calendar(ctx, site.ID, "2024-01")
	if len(runs) != 3 {
		t.Fatalf("runs: got %d, want 3", len(runs))
	}
	if runs[0].KeywordID != firstID || runs[1].KeywordID != secondID {
		t.Errorf("picked keywords: got %q, %q", runs[0].KeywordID, runs[1].KeywordID)
	}
	if runs[2].Status != store.RunFailed {
		t.Errorf("third run: got %q, want failed", runs[2].Status)
	}
}

func TestScheduleRuns_Validation(t *testing.T) {
	// WHAT: Bad dates are rejected; duplicates are skipped, not errors.
	// WHY: The calendar API is user-facing and must fail loudly on junk
	// input but tolerate resubmission.
	svc := newTestService(t)
	ctx := context.Background()
	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")

	if _, err := svc.ScheduleRuns(ctx, site.ID, []string{"Jan 5 2024"}); err == nil {
		t.Error("expected error for bad date")
	}
	n, err := svc.ScheduleRuns(ctx, site.ID, []string{"2024-02-01", "2024-02-01"})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if n != 1 {
		t.Errorf("created: got %d, want 1 (duplicate skipped)", n)
	}
}

func TestCompleteArticle(t *testing.T) {
	// WHAT: The generation callback records the article with the picked
	// keyword as primary, advances to generating, and FinishPipeline
	// returns the site to idle.
	// WHY: The covered-term set and pipeline integrity depend on this
	// handshake.
	clk := &fakeClock{now: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)}
	svc := newTestService(t, WithClock(clk.Now))
	ctx := context.Background()

	site, _ := svc.CreateSite(ctx, "org-1", "Blog", "blog.example.com")
	svc.ConfigureAutopilot(ctx, site.ID, AutopilotSettings{Enabled: true, Cadence: CadenceDaily, EffortLevel: 2, ArticlesPerRun: 1})
	kwID := addScoredKeyword(t, svc, site.ID, "best crm software", 72)

	// Not claimable yet: nothing due.
	if _, err := svc.CompleteArticle(ctx, site.ID, &Article{Title: "too early"}); err == nil {
		t.Error("expected error before a cycle starts")
	}

	clk.now = clk.now.Add(48 * time.Hour)
	if _, err := svc.RunTrigger(ctx); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	a, err := svc.CompleteArticle(ctx, site.ID, &Article{Title: "Best CRM Software in 2024", Slug: "best-crm-software"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.PrimaryKeyword != "best crm software" {
		t.Errorf("primary keyword: got %q", a.PrimaryKeyword)
	}

	got, _ := svc.GetSite(ctx, site.ID)
	if got.Pipeline().Step != StepGenerating {
		t.Errorf("step: got %q", got.PipelineStep)
	}
	if got.PipelineArticleID != a.ID {
		t.Errorf("pipeline article: got %q", got.PipelineArticleID)
	}

	// Recording the article is the one event that consumes the keyword.
	kw, _ := svc.store.GetKeyword(ctx, kwID)
	if kw.Status != store.KeywordUsed {
		t.Errorf("keyword status: got %q, want used after article", kw.Status)
	}

	covered, _ := svc.store.CoveredTerms(ctx, site.ID)
	if !covered["best crm software"] {
		t.Error("article keyword should be covered")
	}

	if err := svc.FinishPipeline(ctx, site.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, _ = svc.GetSite(ctx, site.ID)
	if !got.Pipeline().Idle() {
		t.Errorf("step after finish: got %q", got.PipelineStep)
	}
}
