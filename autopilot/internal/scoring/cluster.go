package scoring

import "strings"

// clusterRule matches a keyword term against one topic cluster.
type clusterRule struct {
	label string
	match func(term string) bool
}

// clusterRules is an ordered rule set; the first match wins. Order is part
// of the contract: "how to fix X" is a how-to, not a troubleshooting term.
var clusterRules = []clusterRule{
	{"how-to", func(t string) bool {
		return strings.Contains(t, "how to") || strings.HasPrefix(t, "how do") ||
			strings.HasPrefix(t, "how can")
	}},
	{"comparison", func(t string) bool {
		return strings.Contains(t, " vs ") || strings.Contains(t, " versus ") ||
			strings.HasPrefix(t, "best ") || strings.Contains(t, "alternative") ||
			strings.Contains(t, "compare")
	}},
	{"definitional", func(t string) bool {
		return strings.Contains(t, "what is") || strings.Contains(t, "what are") ||
			strings.Contains(t, "meaning") || strings.Contains(t, "definition")
	}},
	{"analysis", func(t string) bool {
		return strings.HasPrefix(t, "why ") || strings.Contains(t, "reasons")
	}},
	{"resource", func(t string) bool {
		return strings.Contains(t, "template") || strings.Contains(t, "checklist") ||
			strings.Contains(t, "example") || strings.Contains(t, "tools")
	}},
	{"tips", func(t string) bool {
		return strings.Contains(t, "tips") || strings.Contains(t, "ideas") ||
			strings.Contains(t, "ways to")
	}},
	{"troubleshooting", func(t string) bool {
		return strings.Contains(t, "fix") || strings.Contains(t, "error") ||
			strings.Contains(t, "not working") || strings.Contains(t, "troubleshoot")
	}},
}

// defaultCluster labels terms no rule matches.
const defaultCluster = "general"

// Cluster assigns a topic-cluster label from the keyword text alone.
// It is a total function: every input string maps to exactly one label.
func Cluster(term string) string {
	t := NormalizeTerm(term)
	for _, rule := range clusterRules {
		if rule.match(t) {
			return rule.label
		}
	}
	return defaultCluster
}
