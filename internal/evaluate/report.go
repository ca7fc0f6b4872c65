package evaluate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	issueAllBelow   = 0.6  // dimensions under this ratio surface every issue
	issueSomeBelow  = 0.75 // dimensions under this ratio surface the top issues
	suggestionBelow = 0.8  // sub-dimensions under this ratio earn a suggestion
	maxPerDimension = 3
	basisMaxRunes   = 50
)

// numberedPrefix strips a leading "1. " style enumeration the model
// sometimes prepends to its judgment basis.
var numberedPrefix = regexp.MustCompile(`^\d+\.\s*`)

// BuildSummary fills in the report's narrative fields: the overall
// analysis paragraph, the issue list drawn from weak dimensions, and
// improvement suggestions drawn from low-scoring sub-dimensions.
func BuildSummary(report *Report) {
	report.Issues = collectIssues(report)
	report.Suggestions = collectSuggestions(report)
	report.Analysis = buildAnalysis(report)
}

// collectIssues surfaces problems from underperforming dimensions. A
// dimension scoring under 60% contributes all of its issues; one in the
// 60-75% band contributes its first two.
func collectIssues(report *Report) []string {
	issues := []string{}
	for _, ds := range report.Dimensions {
		if ds.FullScore <= 0 {
			continue
		}
		ratio := ds.Score / ds.FullScore
		if ratio >= issueSomeBelow {
			continue
		}
		limit := 2
		if ratio < issueAllBelow {
			limit = -1
		}
		count := 0
		for _, sub := range ds.SubScores {
			for _, issue := range sub.Issues {
				if issue.Description == "" {
					continue
				}
				issues = append(issues, fmt.Sprintf("【%s】%s", ds.Dimension, issue.Description))
				count++
				if limit > 0 && count >= limit {
					break
				}
			}
			if limit > 0 && count >= limit {
				break
			}
		}
	}
	return issues
}

// collectSuggestions proposes improvements, weakest dimension first,
// capped per dimension so one bad area does not drown out the rest.
func collectSuggestions(report *Report) []string {
	ordered := make([]DimensionScore, len(report.Dimensions))
	copy(ordered, report.Dimensions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return dimensionRatio(ordered[i]) < dimensionRatio(ordered[j])
	})

	suggestions := []string{}
	for _, ds := range ordered {
		count := 0
		for _, sub := range ds.SubScores {
			if sub.FullScore <= 0 || sub.Score/sub.FullScore >= suggestionBelow {
				continue
			}
			basis := numberedPrefix.ReplaceAllString(sub.JudgmentBasis, "")
			suggestions = append(suggestions,
				fmt.Sprintf("优化%s: %s", sub.SubDimension, truncateRunes(basis, basisMaxRunes)))
			count++
			if count >= maxPerDimension {
				break
			}
		}
	}
	return suggestions
}

// buildAnalysis writes the headline paragraph: the verdict plus the
// strongest and weakest dimension. Ties break toward rubric order.
func buildAnalysis(report *Report) string {
	if len(report.Dimensions) == 0 {
		return fmt.Sprintf("评测结论: %s (%.1f/%.0f)", report.FinalLevel, report.TotalScore, report.FullScore)
	}

	best, worst := 0, 0
	for i, ds := range report.Dimensions {
		if dimensionRatio(ds) > dimensionRatio(report.Dimensions[best]) {
			best = i
		}
		if dimensionRatio(ds) < dimensionRatio(report.Dimensions[worst]) {
			worst = i
		}
	}
	b := report.Dimensions[best]
	w := report.Dimensions[worst]

	return fmt.Sprintf("评测结论: %s (%.1f/%.0f)\n\n优势: %s表现最好 (%g/%g分)\n待改进: %s需要重点优化 (%g/%g分)",
		report.FinalLevel, report.TotalScore, report.FullScore,
		b.Dimension, b.Score, b.FullScore,
		w.Dimension, w.Score, w.FullScore)
}

func dimensionRatio(ds DimensionScore) float64 {
	if ds.FullScore <= 0 {
		return 0
	}
	return ds.Score / ds.FullScore
}

func truncateRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
