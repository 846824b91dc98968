// Package autopilot runs automated content planning for tenant sites.
//
// It ingests search-console performance and keyword-research market data
// into a per-site keyword ledger, scores every term as a quick win, a CTR
// optimization, or a content gap, and drives a one-cycle-at-a-time
// pipeline: a periodic trigger claims one due site, picks its best
// keyword, and hands off to content generation. A date-keyed content
// calendar covers runs planned outside the cadence.
package autopilot

import (
	"github.com/rankpilothq/rankpilot/autopilot/internal/scoring"
	"github.com/rankpilothq/rankpilot/autopilot/internal/store"
)

// Re-export store and scoring types for public API.
type (
	Site          = store.Site
	Keyword       = store.Keyword
	Article       = store.Article
	ScheduledRun  = store.ScheduledRun
	PipelineState = store.PipelineState
	PipelineStep  = store.PipelineStep
	KeywordFilter = store.KeywordFilter
	Assessment    = scoring.Assessment
)

// Pipeline steps.
const (
	StepIdle               = store.StepIdle
	StepAwaitingGeneration = store.StepAwaitingGeneration
	StepGenerating         = store.StepGenerating
)

// Cadences.
const (
	CadenceDaily      = store.CadenceDaily
	CadenceEvery3Days = store.CadenceEvery3Days
	CadenceWeekly     = store.CadenceWeekly
)
