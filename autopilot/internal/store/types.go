package store

// Cadence values accepted for autopilot scheduling.
const (
	CadenceDaily      = "daily"
	CadenceEvery3Days = "every_3_days"
	CadenceWeekly     = "weekly"
)

// Keyword lifecycle statuses.
const (
	KeywordActive = "active"
	KeywordUsed   = "used"
)

// Scheduled run statuses.
const (
	RunPending       = "pending"
	RunKeywordPicked = "keyword_picked"
	RunFailed        = "failed"
)

// PipelineStep marks how far a site's automated content cycle has
// progressed. StepIdle is the only step from which the periodic trigger
// may start new work.
type PipelineStep string

const (
	StepIdle               PipelineStep = ""
	StepAwaitingGeneration PipelineStep = "awaiting_generation"
	StepGenerating         PipelineStep = "generating"
)

// PipelineState is the explicit projection of a site's pipeline columns.
// The associated IDs are only meaningful in the matching step: KeywordID
// from awaiting_generation onward, ArticleID from generating onward.
type PipelineState struct {
	Step      PipelineStep `json:"step"`
	KeywordID string       `json:"keyword_id,omitempty"`
	ArticleID string       `json:"article_id,omitempty"`
}

// Idle reports whether the trigger may start a new cycle for the site.
func (p PipelineState) Idle() bool { return p.Step == StepIdle }

// Site is a tenant-owned content property enrolled in autopilot.
type Site struct {
	ID                string `json:"id"`
	OrgID             string `json:"org_id"`
	Name              string `json:"name"`
	Domain            string `json:"domain"`
	AutopilotEnabled  bool   `json:"autopilot_enabled"`
	Cadence           string `json:"cadence"`
	EffortLevel       int    `json:"effort_level"`
	ArticlesPerRun    int    `json:"articles_per_run"`
	PipelineStep      string `json:"pipeline_step,omitempty"`
	PipelineKeywordID string `json:"pipeline_keyword_id,omitempty"`
	PipelineArticleID string `json:"pipeline_article_id,omitempty"`
	NextRunAt         *int64 `json:"next_run_at,omitempty"`
	LastRunAt         *int64 `json:"last_run_at,omitempty"`
	LastError         string `json:"last_error"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

// Pipeline projects the site's pipeline columns into an explicit state.
func (s *Site) Pipeline() PipelineState {
	return PipelineState{
		Step:      PipelineStep(s.PipelineStep),
		KeywordID: s.PipelineKeywordID,
		ArticleID: s.PipelineArticleID,
	}
}

// Keyword is one search term scoped to a site, refreshed by the ingestors
// and scored by the opportunity engine. Metric pointers are nil when that
// data source has never reported the term.
type Keyword struct {
	ID             string   `json:"id"`
	SiteID         string   `json:"site_id"`
	Term           string   `json:"term"`
	TermNorm       string   `json:"term_norm"`
	Clicks         *int64   `json:"clicks,omitempty"`
	Impressions    *int64   `json:"impressions,omitempty"`
	CTR            *float64 `json:"ctr,omitempty"`
	Position       *float64 `json:"position,omitempty"`
	SearchVolume   *int64   `json:"search_volume,omitempty"`
	Competition    *string  `json:"competition,omitempty"`
	CompetitionIdx *float64 `json:"competition_index,omitempty"`
	Opportunity    string   `json:"opportunity"`
	Score          float64  `json:"score"`
	Reasoning      string   `json:"reasoning"`
	Action         string   `json:"action"`
	Cluster        string   `json:"cluster"`
	Status         string   `json:"status"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Article is the artifact produced once a keyword is consumed. The
// autopilot core only needs its primary keyword to suppress already
// covered terms during scoring.
type Article struct {
	ID             string `json:"id"`
	SiteID         string `json:"site_id"`
	PrimaryKeyword string `json:"primary_keyword"`
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	Category       string `json:"category"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ScheduledRun is one content-calendar row: a request to pick a keyword
// for a site on a specific date, independent of the cadence autopilot.
type ScheduledRun struct {
	ID          string `json:"id"`
	SiteID      string `json:"site_id"`
	RunDate     string `json:"run_date"` // YYYY-MM-DD
	Status      string `json:"status"`
	KeywordID   string `json:"keyword_id,omitempty"`
	KeywordText string `json:"keyword_text,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}
