// Package scoring evaluates search-performance and market signals for a
// single keyword and classifies the content opportunity it represents.
//
// The package is pure: no datastore access, no clock, no I/O. Callers pass
// read-only snapshots (the set of terms already covered by articles) so
// every property of the engine is testable without a database.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Category classifies why a keyword is worth targeting.
type Category string

const (
	CategoryNone            Category = ""
	CategoryQuickWin        Category = "quick_win"
	CategoryCTROptimization Category = "ctr_optimization"
	CategoryContentGap      Category = "content_gap"
)

// Signals are the inputs for one keyword. Zero values mean "no data":
// Position 0 means the term has no recorded ranking, SearchVolume 0 means
// no market estimate has been recorded.
type Signals struct {
	Term        string
	Clicks      int64
	Impressions int64
	CTR         float64 // click-through rate as a fraction, e.g. 0.042
	Position    float64 // mean rank position, 1 = top result

	SearchVolume   int64   // monthly search volume estimate
	Competition    string  // LOW | MEDIUM | HIGH
	CompetitionIdx float64 // 0..100
}

// Assessment is the engine's verdict for one keyword.
type Assessment struct {
	Category  Category
	Score     float64
	Reasoning string
	Action    string
	Cluster   string
}

// Covered is a read-only snapshot of normalized terms already targeted by
// published articles.
type Covered map[string]bool

// coveredPenalty deprioritizes terms an article already targets without
// erasing their metric history; a later refresh can still resurface them.
const coveredPenalty = 30

// minCTRImpressions is the impression floor below which a low CTR is noise
// rather than a title/snippet problem.
const minCTRImpressions = 100

// pageOneCutoff is the worst position still considered "on page one".
const pageOneCutoff = 10

// QuickWin scores the chance that a term already earning impressions near
// page one can be pushed to the top with modest effort. Zero when the term
// has no visible ranking signal.
func QuickWin(s Signals) float64 {
	if s.Position <= 0 || s.Impressions <= 0 {
		return 0
	}
	pos := 45 - 2.5*(s.Position-1)
	if pos < 0 {
		pos = 0
	}
	imp := 12 * math.Log10(float64(s.Impressions)+1)
	if imp > 35 {
		imp = 35
	}
	clicks := float64(s.Clicks)
	if clicks > 20 {
		clicks = 20
	}
	return pos + imp + clicks
}

// CTROpportunity scores a title/snippet problem: high impression volume
// with a click-through rate well below what the position should earn.
// Zero when the CTR is already healthy for the position.
func CTROpportunity(s Signals) float64 {
	if s.Position <= 0 || s.Impressions < minCTRImpressions {
		return 0
	}
	expected := expectedCTR(s.Position)
	if s.CTR >= expected {
		return 0
	}
	gap := (expected - s.CTR) / expected
	imp := 12 * math.Log10(float64(s.Impressions)+1)
	if imp > 40 {
		imp = 40
	}
	return gap*50 + imp
}

// ContentGap scores an uncovered market opportunity: recorded search volume
// with no page-one presence. A term already ranking at position 10 or
// better is not a gap, whatever its volume.
func ContentGap(s Signals) float64 {
	if s.SearchVolume <= 0 {
		return 0
	}
	if s.Position > 0 && s.Position <= pageOneCutoff {
		return 0
	}
	vol := 14 * math.Log10(float64(s.SearchVolume)+1)
	if vol > 70 {
		vol = 70
	}
	penalty := competitionPenalty(s.Competition) + s.CompetitionIdx*0.15
	score := vol - penalty
	if score < 0 {
		score = 0
	}
	return score
}

func competitionPenalty(band string) float64 {
	switch strings.ToUpper(band) {
	case "HIGH":
		return 25
	case "MEDIUM":
		return 12
	case "LOW":
		return 0
	default:
		// Unknown band: assume moderate pressure rather than none.
		return 6
	}
}

// expectedCTR is the click-through rate a healthy listing earns at the
// given position.
func expectedCTR(pos float64) float64 {
	switch {
	case pos <= 1:
		return 0.28
	case pos <= 3:
		return 0.15
	case pos <= 5:
		return 0.09
	case pos <= 10:
		return 0.04
	case pos <= 20:
		return 0.015
	default:
		return 0.005
	}
}

// Evaluate computes all three category scores and selects one.
//
// Content-gap wins only when it strictly exceeds both other scores and is
// positive; quick-win wins over CTR-optimization under the same strict
// rule. Equal non-zero scores therefore fall through to the lower-priority
// category, never to an arbitrary one. If an article already covers the
// term, the selected score is reduced by a fixed penalty and floored at 0.
func Evaluate(s Signals, covered Covered) Assessment {
	gapScore := ContentGap(s)
	qwScore := QuickWin(s)
	ctrScore := CTROpportunity(s)

	var a Assessment
	switch pickCategory(gapScore, qwScore, ctrScore) {
	case CategoryContentGap:
		a = Assessment{
			Category: CategoryContentGap,
			Score:    gapScore,
			Reasoning: fmt.Sprintf("no page-one presence for an estimated %d monthly searches (competition %s)",
				s.SearchVolume, orUnknown(s.Competition)),
			Action: "Create a dedicated article targeting this term",
		}
	case CategoryQuickWin:
		a = Assessment{
			Category: CategoryQuickWin,
			Score:    qwScore,
			Reasoning: fmt.Sprintf("ranks at position %.1f with %d impressions; a content refresh can reach the top of page one",
				s.Position, s.Impressions),
			Action: "Refresh and expand the existing page, strengthen internal links",
		}
	case CategoryCTROptimization:
		a = Assessment{
			Category: CategoryCTROptimization,
			Score:    ctrScore,
			Reasoning: fmt.Sprintf("%d impressions but only %.1f%% CTR at position %.1f (expected %.1f%%)",
				s.Impressions, s.CTR*100, s.Position, expectedCTR(s.Position)*100),
			Action: "Rewrite the title tag and meta description",
		}
	default:
		a = Assessment{Reasoning: "no actionable search signal yet"}
	}

	if a.Score > 0 && covered[NormalizeTerm(s.Term)] {
		a.Score -= coveredPenalty
		if a.Score < 0 {
			a.Score = 0
		}
		a.Reasoning += "; an existing article already targets this term"
	}

	a.Cluster = Cluster(s.Term)
	return a
}

// pickCategory applies the selection policy. Content-gap is chosen only if
// it strictly exceeds both other scores; quick-win only if it strictly
// exceeds CTR-optimization. The chosen score must be positive. The strict
// inequalities make the priority order deliberate: an equal non-zero score
// falls through to the lower-priority category.
func pickCategory(gap, qw, ctr float64) Category {
	switch {
	case gap > 0 && gap > qw && gap > ctr:
		return CategoryContentGap
	case qw > 0 && qw > ctr:
		return CategoryQuickWin
	case ctr > 0:
		return CategoryCTROptimization
	default:
		return CategoryNone
	}
}

// EvaluateMarket reconciles freshly arrived market-research data with a
// keyword's previously stored score. It reports ok=false when the keyword
// must not be re-classified: no recorded volume, already ranking on page
// one, or the new content-gap score does not exceed the stored score
// (market data never downgrades a term console data already proved out).
func EvaluateMarket(s Signals, prevScore float64, covered Covered) (Assessment, bool) {
	if s.SearchVolume <= 0 {
		return Assessment{}, false
	}
	if s.Position > 0 && s.Position <= pageOneCutoff {
		return Assessment{}, false
	}

	score := ContentGap(s)
	if score > 0 && covered[NormalizeTerm(s.Term)] {
		score -= coveredPenalty
		if score < 0 {
			score = 0
		}
	}
	if score <= prevScore || score <= 0 {
		return Assessment{}, false
	}

	return Assessment{
		Category: CategoryContentGap,
		Score:    score,
		Reasoning: fmt.Sprintf("no page-one presence for an estimated %d monthly searches (competition %s)",
			s.SearchVolume, orUnknown(s.Competition)),
		Action:  "Create a dedicated article targeting this term",
		Cluster: Cluster(s.Term),
	}, true
}

func orUnknown(band string) string {
	if band == "" {
		return "unknown"
	}
	return strings.ToUpper(band)
}

// NormalizeTerm canonicalises a keyword term for identity comparison:
// lowercase, trimmed, inner whitespace collapsed to single spaces.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
